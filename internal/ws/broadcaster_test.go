package ws

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrack/internal/domain"
	"caretrack/internal/privacy"
)

func drain(s *Session) []Outbound {
	var out []Outbound
	for {
		select {
		case msg := <-s.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func testSample() domain.LocationSample {
	return domain.LocationSample{
		TransportID: 42,
		Lat:         40.0,
		Lon:         -74.0,
		Accuracy:    10,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Sequence:    101,
	}
}

func TestPositionFanOutExactlyOncePerSubscriber(t *testing.T) {
	registry, _ := newTestRegistry(t)
	b := NewBroadcaster(registry, privacy.New(privacy.Config{}), nil)

	staff := testSession(domain.Principal{ID: 3, Role: domain.RoleStaff})
	clinician := testSession(domain.Principal{ID: 5, Role: domain.RoleClinician})
	outsider := testSession(domain.Principal{ID: 4, Role: domain.RoleStaff})

	ctx := context.Background()
	require.NoError(t, registry.Join(ctx, staff, 42))
	require.NoError(t, registry.Join(ctx, clinician, 42))
	require.NoError(t, registry.Join(ctx, outsider, 99))

	b.PositionRecorded(testSample())

	assert.Len(t, drain(staff), 1)
	assert.Len(t, drain(clinician), 1)
	assert.Empty(t, drain(outsider), "sessions outside the room receive nothing")
}

func TestPositionTransformedPerRecipientRole(t *testing.T) {
	registry, _ := newTestRegistry(t)
	b := NewBroadcaster(registry, privacy.New(privacy.Config{}), nil)

	staff := testSession(domain.Principal{ID: 3, Role: domain.RoleStaff})
	family := testSession(domain.Principal{ID: 8, Role: domain.RoleFamily, BoundClientID: 7})

	ctx := context.Background()
	require.NoError(t, registry.Join(ctx, staff, 42))
	require.NoError(t, registry.Join(ctx, family, 42))

	in := testSample()
	b.PositionRecorded(in)

	staffMsgs := drain(staff)
	require.Len(t, staffMsgs, 1)
	staffData := staffMsgs[0].Data.(positionRxData)
	assert.Equal(t, in.Lat, staffData.Lat)
	assert.Equal(t, in.Lon, staffData.Lon)
	assert.Equal(t, in.Timestamp.UTC().Format(time.RFC3339), staffData.Timestamp)

	familyMsgs := drain(family)
	require.Len(t, familyMsgs, 1)
	familyData := familyMsgs[0].Data.(positionRxData)
	assert.LessOrEqual(t, math.Abs(familyData.Lat-in.Lat), privacy.DefaultJitterDegrees)
	assert.LessOrEqual(t, math.Abs(familyData.Lon-in.Lon), privacy.DefaultJitterDegrees)

	shown, err := time.Parse(time.RFC3339, familyData.Timestamp)
	require.NoError(t, err)
	// RFC3339 truncates sub-second precision, which can only lengthen the
	// observed lag.
	lag := in.Timestamp.Sub(shown)
	assert.GreaterOrEqual(t, lag, privacy.DefaultDelayMin)
	assert.LessOrEqual(t, lag, privacy.DefaultDelayMax+time.Second)

	assert.Equal(t, in.Sequence, familyData.Sequence, "ordering metadata is untouched")
}

func TestStatusDeliveredUnchangedToAllRoles(t *testing.T) {
	registry, _ := newTestRegistry(t)
	b := NewBroadcaster(registry, privacy.New(privacy.Config{}), nil)

	staff := testSession(domain.Principal{ID: 3, Role: domain.RoleStaff})
	family := testSession(domain.Principal{ID: 8, Role: domain.RoleFamily, BoundClientID: 7})

	ctx := context.Background()
	require.NoError(t, registry.Join(ctx, staff, 42))
	require.NoError(t, registry.Join(ctx, family, 42))

	b.StatusChanged(42, domain.StatusCompleted, "arrived")

	for _, s := range []*Session{staff, family} {
		msgs := drain(s)
		require.Len(t, msgs, 1)
		assert.Equal(t, msgStatusRx, msgs[0].Type)
		data := msgs[0].Data.(statusRxData)
		assert.Equal(t, "completed", data.Status)
		assert.Equal(t, "arrived", data.Note)
	}
}

func TestSaturatedSubscriberTornDownNotSkipped(t *testing.T) {
	registry, _ := newTestRegistry(t)
	b := NewBroadcaster(registry, privacy.New(privacy.Config{}), nil)

	slow := testSession(domain.Principal{ID: 3, Role: domain.RoleStaff})
	healthy := testSession(domain.Principal{ID: 5, Role: domain.RoleClinician})

	ctx := context.Background()
	require.NoError(t, registry.Join(ctx, slow, 42))
	require.NoError(t, registry.Join(ctx, healthy, 42))

	// The slow session never drains; the healthy one keeps up.
	var healthyGot int
	for n := 0; n < sendBuffer+3; n++ {
		b.StatusChanged(42, domain.StatusInProgress, "")
		healthyGot += len(drain(healthy))
	}
	assert.Equal(t, sendBuffer+3, healthyGot, "a slow peer must not block the room")

	// The overflowing event cancelled the slow session instead of leaving it
	// subscribed with a hole in its stream.
	assert.Len(t, drain(slow), sendBuffer)
	select {
	case <-slow.ctx.Done():
	default:
		t.Fatal("session that missed an event must be torn down")
	}
	assert.False(t, slow.enqueue(Outbound{Type: msgStatusRx}), "no delivery resumes after the gap")
}
