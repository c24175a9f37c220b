// Package access answers whether a principal may observe or mutate a given
// transport, based on the relationship graph held by the persistence layer.
package access

import (
	"context"
	"errors"
	"slices"

	"caretrack/internal/domain"
	"caretrack/internal/storage"
	pkgerrors "caretrack/pkg/errors"
)

// Level is the access a principal has to one transport.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelReadWrite
)

func (l Level) CanRead() bool  { return l >= LevelRead }
func (l Level) CanWrite() bool { return l == LevelReadWrite }

// Resolver evaluates the relationship chain: administrators see every
// existing transport, staff their own assignments, clinicians their client
// roster, family members their bound client. It has no side effects; every
// call reads current relational state.
type Resolver struct {
	transports storage.TransportStore
	rosters    storage.RosterStore
}

func NewResolver(transports storage.TransportStore, rosters storage.RosterStore) *Resolver {
	return &Resolver{transports: transports, rosters: rosters}
}

// Resolve returns the principal's access level for the transport. A missing
// transport surfaces as CodeNotFound; storage failures as CodePersistence.
func (r *Resolver) Resolve(ctx context.Context, p domain.Principal, transportID int64) (Level, error) {
	t, err := r.transports.GetTransport(ctx, transportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LevelNone, err
		}
		return LevelNone, pkgerrors.Wrap(pkgerrors.CodePersistence, "transport lookup failed", err)
	}

	switch p.Role {
	case domain.RoleAdmin:
		return LevelReadWrite, nil
	case domain.RoleStaff:
		if t.AssignedStaffID == p.ID {
			return LevelReadWrite, nil
		}
	case domain.RoleClinician:
		clients, err := r.rosters.ClientsForClinician(ctx, p.ID)
		if err != nil {
			return LevelNone, pkgerrors.Wrap(pkgerrors.CodePersistence, "roster lookup failed", err)
		}
		if slices.Contains(clients, t.ClientID) {
			return LevelRead, nil
		}
	case domain.RoleFamily:
		if p.BoundClientID != 0 && t.ClientID == p.BoundClientID {
			return LevelRead, nil
		}
	}
	return LevelNone, nil
}
