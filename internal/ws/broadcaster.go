package ws

import (
	"caretrack/internal/domain"
	"caretrack/internal/platform/metrics"
	"caretrack/internal/privacy"
)

// Broadcaster fans accepted events out to a transport's room. It implements
// tracking.Sink, so it is invoked at the state machine's serialization point
// and per-transport acceptance order carries straight through to every
// session's send queue.
type Broadcaster struct {
	registry  *Registry
	transform *privacy.Transformer
	metrics   *metrics.Metrics
}

func NewBroadcaster(registry *Registry, transform *privacy.Transformer, mx *metrics.Metrics) *Broadcaster {
	return &Broadcaster{registry: registry, transform: transform, metrics: mx}
}

// StatusChanged delivers a status event unchanged to every subscriber.
func (b *Broadcaster) StatusChanged(transportID int64, status domain.TransportStatus, note string) {
	msg := statusRxMsg(transportID, status, note)
	for _, s := range b.registry.Targets(transportID) {
		s.enqueue(msg)
	}
	b.metrics.IncBroadcast("status")
}

// PositionRecorded delivers a position event once per subscriber, applying
// the privacy transform per recipient role. The stored sample is never
// touched; each restricted recipient gets its own obfuscated copy.
func (b *Broadcaster) PositionRecorded(sample domain.LocationSample) {
	for _, s := range b.registry.Targets(sample.TransportID) {
		s.enqueue(positionRxMsg(b.transform.Apply(sample, s.Principal.Role)))
	}
	b.metrics.IncBroadcast("position")
}
