// Package feed emits every accepted ground-truth event to a downstream topic
// for consumers outside the live core (dashboard backend, pipelines). Publish
// failures are recorded and logged, never surfaced to the originating
// session: the feed is best-effort, the broadcast path is not.
package feed

import (
	"context"
	"time"

	"caretrack/internal/domain"
)

const (
	KindStatus   = "status"
	KindPosition = "position"
)

// Event is the feed record for one accepted mutation. Position events carry
// the untransformed sample; the privacy transform applies to subscriber
// delivery only.
type Event struct {
	Kind        string                 `json:"kind"`
	TransportID int64                  `json:"transportId"`
	Status      domain.TransportStatus `json:"status,omitempty"`
	Note        string                 `json:"note,omitempty"`
	Sample      *domain.LocationSample `json:"sample,omitempty"`
	At          time.Time              `json:"at"`
}

// Publisher hands accepted events to the feed.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// Nop is the publisher used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) Close()                         {}
