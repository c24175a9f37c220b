// Package privacy produces the obfuscated copy of a location sample shown to
// privacy-restricted roles. It never touches stored state: callers hand the
// returned copy to the wire and keep the original for persistence.
package privacy

import (
	"math/rand"
	"time"

	"caretrack/internal/domain"
)

const (
	// DefaultJitterDegrees bounds the uniform offset applied independently to
	// lat and lon (roughly ±500m at mid latitudes).
	DefaultJitterDegrees = 0.0045

	DefaultDelayMin = 3 * time.Minute
	DefaultDelayMax = 5 * time.Minute
)

// Config is passed explicitly at construction so tests can force privacy on
// or off per instance. Disabled mirrors the reference behavior's single
// global toggle: when set, every role receives unmodified samples.
type Config struct {
	Disabled      bool
	JitterDegrees float64
	DelayMin      time.Duration
	DelayMax      time.Duration
}

// Transformer applies bounded spatial jitter and a bounded backward shift of
// the displayed timestamp for Family recipients.
type Transformer struct {
	cfg Config
	// randFloat yields uniform values in [0,1); injectable for tests.
	randFloat func() float64
}

type Option func(*Transformer)

// WithRandFloat overrides the randomness source.
func WithRandFloat(fn func() float64) Option {
	return func(t *Transformer) {
		if fn != nil {
			t.randFloat = fn
		}
	}
}

func New(cfg Config, opts ...Option) *Transformer {
	if cfg.JitterDegrees == 0 {
		cfg.JitterDegrees = DefaultJitterDegrees
	}
	if cfg.DelayMin == 0 {
		cfg.DelayMin = DefaultDelayMin
	}
	if cfg.DelayMax == 0 {
		cfg.DelayMax = DefaultDelayMax
	}
	t := &Transformer{cfg: cfg, randFloat: rand.Float64}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Apply returns the sample as the given role should see it. The bounds are
// fixed per transformer; the offsets are fresh randomness per call. Delivery
// timing and ordering are unaffected: only the displayed fields change.
func (t *Transformer) Apply(sample domain.LocationSample, role domain.Role) domain.LocationSample {
	if t.cfg.Disabled || role != domain.RoleFamily {
		return sample
	}

	out := sample
	out.Lat = clampLat(sample.Lat + t.jitter())
	out.Lon = clampLon(sample.Lon + t.jitter())
	out.Timestamp = sample.Timestamp.Add(-t.delay())
	return out
}

// jitter draws a uniform offset in [-JitterDegrees, +JitterDegrees].
func (t *Transformer) jitter() float64 {
	return (t.randFloat()*2 - 1) * t.cfg.JitterDegrees
}

// delay draws a uniform backward shift in [DelayMin, DelayMax].
func (t *Transformer) delay() time.Duration {
	span := t.cfg.DelayMax - t.cfg.DelayMin
	return t.cfg.DelayMin + time.Duration(t.randFloat()*float64(span))
}

func clampLat(v float64) float64 {
	if v > 90 {
		return 90
	}
	if v < -90 {
		return -90
	}
	return v
}

func clampLon(v float64) float64 {
	if v > 180 {
		return 180
	}
	if v < -180 {
		return -180
	}
	return v
}
