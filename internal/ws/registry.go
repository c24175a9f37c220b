package ws

import (
	"context"
	"errors"
	"sync"

	"caretrack/internal/access"
	"caretrack/internal/domain"
	"caretrack/internal/platform/metrics"
	"caretrack/internal/storage"
	pkgerrors "caretrack/pkg/errors"
)

// AccessResolver is the slice of the access package the registry consults at
// join time.
type AccessResolver interface {
	Resolve(ctx context.Context, p domain.Principal, transportID int64) (access.Level, error)
}

// Registry maps transport ids to the sessions subscribed to them. Join is the
// read-side enforcement point: a session appears in a room only after the
// resolver approved it for that principal.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Session]struct{}

	resolver AccessResolver
	metrics  *metrics.Metrics
}

func NewRegistry(resolver AccessResolver, mx *metrics.Metrics) *Registry {
	return &Registry{
		rooms:    make(map[int64]map[*Session]struct{}),
		resolver: resolver,
		metrics:  mx,
	}
}

// Join subscribes the session to the transport's room after an access check.
// Denials leave the registry untouched and keep the connection open. A
// missing transport is reported as the same denial so probing cannot reveal
// which ids exist.
func (r *Registry) Join(ctx context.Context, s *Session, transportID int64) error {
	level, err := r.resolver.Resolve(ctx, s.Principal, transportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.metrics.IncAuthzDenied()
			return pkgerrors.New(pkgerrors.CodeForbidden, "access denied to transport")
		}
		return err
	}
	if !level.CanRead() {
		r.metrics.IncAuthzDenied()
		return pkgerrors.New(pkgerrors.CodeForbidden, "access denied to transport")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[transportID]
	if room == nil {
		room = make(map[*Session]struct{})
		r.rooms[transportID] = room
	}
	room[s] = struct{}{}
	s.subscriptions[transportID] = struct{}{}
	return nil
}

// Leave removes the session from one room. Idempotent.
func (r *Registry) Leave(s *Session, transportID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(s, transportID)
}

// RemoveSession removes the session from every room it belongs to in one
// atomic sweep. This is the disconnect path; it is safe to call more than
// once.
func (r *Registry) RemoveSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for transportID := range s.subscriptions {
		r.dropLocked(s, transportID)
	}
}

// Targets returns a snapshot of the room so the broadcaster iterates without
// holding the registry lock.
func (r *Registry) Targets(transportID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[transportID]
	if len(room) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(room))
	for s := range room {
		out = append(out, s)
	}
	return out
}

// RoomSize reports current membership; used by tests and debug logging.
func (r *Registry) RoomSize(transportID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[transportID])
}

func (r *Registry) dropLocked(s *Session, transportID int64) {
	if room, ok := r.rooms[transportID]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(r.rooms, transportID)
		}
	}
	delete(s.subscriptions, transportID)
}
