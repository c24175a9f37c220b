package privacy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"caretrack/internal/domain"
)

func sampleAt(lat, lon float64) domain.LocationSample {
	return domain.LocationSample{
		TransportID: 42,
		Lat:         lat,
		Lon:         lon,
		Accuracy:    10,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Sequence:    1,
	}
}

func TestFamilyJitterWithinBounds(t *testing.T) {
	tr := New(Config{})
	in := sampleAt(40.0, -74.0)

	for n := 0; n < 200; n++ {
		out := tr.Apply(in, domain.RoleFamily)
		assert.LessOrEqual(t, math.Abs(out.Lat-in.Lat), DefaultJitterDegrees)
		assert.LessOrEqual(t, math.Abs(out.Lon-in.Lon), DefaultJitterDegrees)

		lag := in.Timestamp.Sub(out.Timestamp)
		assert.GreaterOrEqual(t, lag, DefaultDelayMin)
		assert.LessOrEqual(t, lag, DefaultDelayMax)

		// Everything except the displayed position and timestamp is intact.
		assert.Equal(t, in.TransportID, out.TransportID)
		assert.Equal(t, in.Sequence, out.Sequence)
		assert.Equal(t, in.Accuracy, out.Accuracy)
	}
}

func TestInputNeverMutated(t *testing.T) {
	tr := New(Config{})
	in := sampleAt(40.0, -74.0)
	orig := in

	tr.Apply(in, domain.RoleFamily)
	assert.Equal(t, orig, in)
}

func TestOtherRolesUnchanged(t *testing.T) {
	tr := New(Config{})
	in := sampleAt(40.0, -74.0)

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleStaff, domain.RoleClinician} {
		assert.Equal(t, in, tr.Apply(in, role), "role %s must see ground truth", role)
	}
}

func TestDisabledTogglePassesThrough(t *testing.T) {
	tr := New(Config{Disabled: true})
	in := sampleAt(40.0, -74.0)
	assert.Equal(t, in, tr.Apply(in, domain.RoleFamily))
}

func TestJitterClampedAtPoles(t *testing.T) {
	// Force maximum positive offsets.
	tr := New(Config{}, WithRandFloat(func() float64 { return 0.999999 }))
	out := tr.Apply(sampleAt(89.9999, 179.9999), domain.RoleFamily)
	assert.LessOrEqual(t, out.Lat, 90.0)
	assert.LessOrEqual(t, out.Lon, 180.0)
}

func TestDelayBoundsWithInjectedRandomness(t *testing.T) {
	in := sampleAt(40.0, -74.0)

	low := New(Config{}, WithRandFloat(func() float64 { return 0 }))
	out := low.Apply(in, domain.RoleFamily)
	assert.Equal(t, in.Timestamp.Add(-DefaultDelayMin), out.Timestamp)

	// rand -> 1 is excluded, but values arbitrarily close to it stay inside
	// the configured maximum.
	high := New(Config{}, WithRandFloat(func() float64 { return 0.999999 }))
	out = high.Apply(in, domain.RoleFamily)
	assert.True(t, out.Timestamp.After(in.Timestamp.Add(-DefaultDelayMax-time.Millisecond)))
}
