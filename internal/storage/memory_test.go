package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrack/internal/domain"
)

func seedTransport(s *InMemoryStore) domain.Transport {
	t := domain.Transport{
		ID:              42,
		ClientID:        7,
		AssignedStaffID: 3,
		Status:          domain.StatusScheduled,
		Origin:          domain.Coordinate{Lat: 40.0, Lon: -74.0},
		Destination:     domain.Coordinate{Lat: 40.1, Lon: -74.1},
	}
	s.PutTransport(t)
	return t
}

func TestGetTransport(t *testing.T) {
	store := NewInMemoryStore()
	want := seedTransport(store)

	got, err := store.GetTransport(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = store.GetTransport(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTransportStatus(t *testing.T) {
	store := NewInMemoryStore()
	seedTransport(store)
	ctx := context.Background()

	started := time.Now()
	require.NoError(t, store.UpdateTransportStatus(ctx, 42, domain.StatusInProgress, &started, nil))

	got, err := store.GetTransport(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Equal(t, started, *got.StartedAt)
	assert.Nil(t, got.EndedAt)

	ended := started.Add(time.Hour)
	require.NoError(t, store.UpdateTransportStatus(ctx, 42, domain.StatusCompleted, nil, &ended))

	got, err = store.GetTransport(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt, "existing startedAt must be preserved")
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, ended, *got.EndedAt)

	assert.ErrorIs(t, store.UpdateTransportStatus(ctx, 999, domain.StatusCancelled, nil, nil), ErrNotFound)
}

func TestAppendLocationSample(t *testing.T) {
	store := NewInMemoryStore()
	seedTransport(store)
	ctx := context.Background()

	s1 := domain.LocationSample{TransportID: 42, Lat: 40.0, Lon: -74.0, Timestamp: time.Now(), Sequence: 1}
	s2 := domain.LocationSample{TransportID: 42, Lat: 40.001, Lon: -74.001, Timestamp: time.Now(), Sequence: 2}
	require.NoError(t, store.AppendLocationSample(ctx, s1))
	require.NoError(t, store.AppendLocationSample(ctx, s2))

	samples := store.SamplesForTransport(42)
	require.Len(t, samples, 2)
	assert.Equal(t, s1, samples[0])
	assert.Equal(t, s2, samples[1])

	err := store.AppendLocationSample(ctx, domain.LocationSample{TransportID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientsForClinician(t *testing.T) {
	store := NewInMemoryStore()
	store.SetClinicianClients(5, []int64{7, 9})

	clients, err := store.ClientsForClinician(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, clients)

	clients, err = store.ClientsForClinician(context.Background(), 6)
	require.NoError(t, err)
	assert.Empty(t, clients)
}
