// Package storage is the boundary to the persistence collaborator. Stores are
// interface-driven to keep the domain logic testable and to allow swapping
// in-memory and PostgreSQL implementations without rewiring business code.
package storage

import (
	"context"
	"time"

	"caretrack/internal/domain"
)

// TransportStore owns the durable transport records.
type TransportStore interface {
	GetTransport(ctx context.Context, id int64) (domain.Transport, error)
	// UpdateTransportStatus persists a status change. startedAt and endedAt
	// are only written when non-nil; existing values are preserved.
	UpdateTransportStatus(ctx context.Context, id int64, status domain.TransportStatus, startedAt, endedAt *time.Time) error
}

// LocationStore appends accepted ground-truth location samples.
type LocationStore interface {
	AppendLocationSample(ctx context.Context, sample domain.LocationSample) error
}

// RosterStore resolves the client roster assigned to a clinician.
type RosterStore interface {
	ClientsForClinician(ctx context.Context, clinicianID int64) ([]int64, error)
}

// Store is the full persistence surface the live core consumes.
type Store interface {
	TransportStore
	LocationStore
	RosterStore
}
