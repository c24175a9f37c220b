// Package tracking owns the authoritative status of each transport and
// serializes all mutations per transport id. Every accepted mutation is
// persisted before it is handed to the broadcaster, so observers never see an
// event the store did not take.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"caretrack/internal/access"
	"caretrack/internal/domain"
	"caretrack/internal/feed"
	"caretrack/internal/platform/metrics"
	"caretrack/internal/storage"
	pkgerrors "caretrack/pkg/errors"
)

// AccessResolver is the slice of the access package the machine re-checks on
// every authored write.
type AccessResolver interface {
	Resolve(ctx context.Context, p domain.Principal, transportID int64) (access.Level, error)
}

// Sink receives accepted events, already serialized in acceptance order for
// their transport. The fan-out broadcaster implements it.
type Sink interface {
	StatusChanged(transportID int64, status domain.TransportStatus, note string)
	PositionRecorded(sample domain.LocationSample)
}

// Machine serializes status and position mutations with one guarded entry per
// transport id. The entry's mutex is the single-writer point: validation,
// persistence, in-memory apply and hand-off to the sink all happen under it,
// so two racing writers can never interleave out of acceptance order.
type Machine struct {
	mu      sync.Mutex
	entries map[int64]*entry

	store    storage.Store
	resolver AccessResolver
	sink     Sink
	pub      feed.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
}

type entry struct {
	mu     sync.Mutex
	loaded bool
	t      domain.Transport
	seq    uint64
}

type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mx }
}

func WithFeed(pub feed.Publisher) Option {
	return func(m *Machine) {
		if pub != nil {
			m.pub = pub
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func New(store storage.Store, resolver AccessResolver, sink Sink, opts ...Option) *Machine {
	m := &Machine{
		entries:  make(map[int64]*entry),
		store:    store,
		resolver: resolver,
		sink:     sink,
		pub:      feed.Nop{},
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UpdateStatus applies a status transition authored by p. Admin may drive any
// transport; Staff only their own assignment; Clinician and Family never.
func (m *Machine) UpdateStatus(ctx context.Context, p domain.Principal, transportID int64, next domain.TransportStatus, note string) error {
	if !next.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown status")
	}
	if p.Role == domain.RoleFamily {
		return pkgerrors.New(pkgerrors.CodeForbidden, "families cannot update transport status")
	}
	if p.Role == domain.RoleClinician {
		return pkgerrors.New(pkgerrors.CodeForbidden, "clinicians have read-only access")
	}

	e := m.entry(transportID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.load(ctx, e, transportID); err != nil {
		return denyNotFound(p, err)
	}
	if err := m.requireWrite(ctx, p, transportID); err != nil {
		return err
	}

	if e.t.Status.Terminal() {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "transport is in a terminal state")
	}
	if !e.t.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "illegal status transition")
	}

	now := m.clock()
	var startedAt, endedAt *time.Time
	if next == domain.StatusInProgress {
		startedAt = &now
	}
	if next.Terminal() {
		endedAt = &now
	}

	if err := m.store.UpdateTransportStatus(ctx, transportID, next, startedAt, endedAt); err != nil {
		m.metrics.IncPersistenceError()
		m.logger.ErrorContext(ctx, "status update not persisted",
			"error", err,
			"transport_id", transportID,
		)
		return pkgerrors.Wrap(pkgerrors.CodePersistence, "failed to persist status update", err)
	}

	e.t.Status = next
	if startedAt != nil {
		e.t.StartedAt = startedAt
	}
	if endedAt != nil {
		e.t.EndedAt = endedAt
	}

	m.sink.StatusChanged(transportID, next, note)
	m.pub.Publish(ctx, feed.Event{
		Kind:        feed.KindStatus,
		TransportID: transportID,
		Status:      next,
		Note:        note,
		At:          now,
	})
	return nil
}

// RecordPosition ingests a position report authored by the assigned Staff
// principal. Only legal while the transport is in progress.
func (m *Machine) RecordPosition(ctx context.Context, p domain.Principal, transportID int64, lat, lon, accuracy float64, ts time.Time) error {
	if !domain.ValidLatLon(lat, lon) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	if p.Role != domain.RoleStaff {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only staff can send position updates")
	}

	e := m.entry(transportID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.load(ctx, e, transportID); err != nil {
		return denyNotFound(p, err)
	}
	if err := m.requireWrite(ctx, p, transportID); err != nil {
		return err
	}
	if e.t.Status != domain.StatusInProgress {
		return pkgerrors.New(pkgerrors.CodeTransportNotActive, "transport is not in progress")
	}

	sample := domain.LocationSample{
		TransportID: transportID,
		Lat:         lat,
		Lon:         lon,
		Accuracy:    accuracy,
		Timestamp:   ts,
		Sequence:    e.seq + 1,
	}
	if err := m.store.AppendLocationSample(ctx, sample); err != nil {
		m.metrics.IncPersistenceError()
		m.logger.ErrorContext(ctx, "location sample not persisted",
			"error", err,
			"transport_id", transportID,
		)
		return pkgerrors.Wrap(pkgerrors.CodePersistence, "failed to persist location sample", err)
	}
	e.seq = sample.Sequence

	m.sink.PositionRecorded(sample)
	m.pub.Publish(ctx, feed.Event{
		Kind:        feed.KindPosition,
		TransportID: transportID,
		Sample:      &sample,
		At:          m.clock(),
	})
	return nil
}

// Snapshot returns the in-memory authoritative record, loading it on first
// touch. Read-only callers (tests, readiness probes) use it.
func (m *Machine) Snapshot(ctx context.Context, transportID int64) (domain.Transport, error) {
	e := m.entry(transportID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := m.load(ctx, e, transportID); err != nil {
		return domain.Transport{}, err
	}
	return e.t, nil
}

func (m *Machine) entry(transportID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[transportID]
	if e == nil {
		e = &entry{}
		m.entries[transportID] = e
	}
	return e
}

// load pulls the durable record into the entry on first use. The sequence
// base is seeded from the clock so a restarted instance cannot reissue
// sequence numbers already used for this transport.
func (m *Machine) load(ctx context.Context, e *entry, transportID int64) error {
	if e.loaded {
		return nil
	}
	t, err := m.store.GetTransport(ctx, transportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		m.metrics.IncPersistenceError()
		return pkgerrors.Wrap(pkgerrors.CodePersistence, "transport lookup failed", err)
	}
	e.t = t
	e.seq = uint64(m.clock().UnixMilli())
	e.loaded = true
	return nil
}

// denyNotFound turns a missing transport into the standard denial for
// non-admin authors, so the write path cannot be used to probe which ids
// exist. Admins get the real answer.
func denyNotFound(p domain.Principal, err error) error {
	if errors.Is(err, storage.ErrNotFound) && p.Role != domain.RoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "access denied to transport")
	}
	return err
}

// requireWrite re-resolves access at the serialization point so assignment
// changes made while a connection is open take effect on the next write.
func (m *Machine) requireWrite(ctx context.Context, p domain.Principal, transportID int64) error {
	level, err := m.resolver.Resolve(ctx, p, transportID)
	if err != nil {
		return err
	}
	if !level.CanWrite() {
		m.metrics.IncAuthzDenied()
		return pkgerrors.New(pkgerrors.CodeForbidden, "access denied to transport")
	}
	return nil
}
