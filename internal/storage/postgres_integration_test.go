//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"caretrack/internal/domain"
	"caretrack/pkg/testutil/containers"
)

const testSchema = `
CREATE TABLE transports (
	id                BIGSERIAL PRIMARY KEY,
	client_id         BIGINT NOT NULL,
	assigned_staff_id BIGINT NOT NULL,
	status            TEXT NOT NULL,
	origin_lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
	origin_lon        DOUBLE PRECISION NOT NULL DEFAULT 0,
	dest_lat          DOUBLE PRECISION NOT NULL DEFAULT 0,
	dest_lon          DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at        TIMESTAMPTZ,
	ended_at          TIMESTAMPTZ
);

CREATE TABLE location_samples (
	id           BIGSERIAL PRIMARY KEY,
	transport_id BIGINT NOT NULL REFERENCES transports (id),
	lat          DOUBLE PRECISION NOT NULL,
	lon          DOUBLE PRECISION NOT NULL,
	accuracy     DOUBLE PRECISION NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	sequence     BIGINT NOT NULL
);

CREATE TABLE clinician_clients (
	clinician_id BIGINT NOT NULL,
	client_id    BIGINT NOT NULL,
	PRIMARY KEY (clinician_id, client_id)
);
`

func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	pc := containers.NewPostgresContainer(t)
	_, err := pc.DB.Exec(testSchema)
	require.NoError(t, err)
	return NewPostgresStoreFromDB(pc.DB)
}

func seedTransport(t *testing.T, store *PostgresStore, clientID, staffID int64, status domain.TransportStatus) int64 {
	t.Helper()
	var id int64
	err := store.db.QueryRow(`
		INSERT INTO transports (client_id, assigned_staff_id, status, origin_lat, origin_lon, dest_lat, dest_lon)
		VALUES ($1, $2, $3, 40.7, -74.0, 40.8, -73.9)
		RETURNING id
	`, clientID, staffID, string(status)).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPostgresTransportLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := seedTransport(t, store, 7, 3, domain.StatusScheduled)

	got, err := store.GetTransport(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, got.Status)
	require.Equal(t, int64(7), got.ClientID)
	require.Equal(t, int64(3), got.AssignedStaffID)
	require.Nil(t, got.StartedAt)
	require.Nil(t, got.EndedAt)

	started := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.UpdateTransportStatus(ctx, id, domain.StatusInProgress, &started, nil))

	got, err = store.GetTransport(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
	require.WithinDuration(t, started, *got.StartedAt, time.Second)
	require.Nil(t, got.EndedAt)

	ended := started.Add(30 * time.Minute)
	require.NoError(t, store.UpdateTransportStatus(ctx, id, domain.StatusCompleted, nil, &ended))

	got, err = store.GetTransport(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt, "nil startedAt must not erase the recorded start")
	require.NotNil(t, got.EndedAt)
}

func TestPostgresUnknownTransport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetTransport(ctx, 99999)
	require.ErrorIs(t, err, ErrNotFound)

	err = store.UpdateTransportStatus(ctx, 99999, domain.StatusInProgress, nil, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresAppendLocationSamples(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := seedTransport(t, store, 7, 3, domain.StatusInProgress)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendLocationSample(ctx, domain.LocationSample{
			TransportID: id,
			Lat:         40.7 + float64(i)*0.001,
			Lon:         -74.0,
			Accuracy:    8,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Sequence:    uint64(i + 1),
		}))
	}

	rows, err := store.db.Query(
		`SELECT lat, sequence FROM location_samples WHERE transport_id = $1 ORDER BY sequence`, id)
	require.NoError(t, err)
	defer rows.Close()

	var count int
	for rows.Next() {
		var (
			lat float64
			seq int64
		)
		require.NoError(t, rows.Scan(&lat, &seq))
		require.Equal(t, int64(count+1), seq)
		count++
	}
	require.NoError(t, rows.Err())
	require.Equal(t, 3, count)
}

func TestPostgresClinicianRoster(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(
		`INSERT INTO clinician_clients (clinician_id, client_id) VALUES (5, 7), (5, 11)`)
	require.NoError(t, err)

	clients, err := store.ClientsForClinician(ctx, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{7, 11}, clients)

	clients, err = store.ClientsForClinician(ctx, 6)
	require.NoError(t, err)
	require.Empty(t, clients)
}
