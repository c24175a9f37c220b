package storage

import (
	"context"
	"sync"
	"time"

	"caretrack/internal/domain"
)

// InMemoryStore keeps the whole persistence surface in process. Used for
// development and as the reference implementation in tests; it intentionally
// favors clarity over performance.
type InMemoryStore struct {
	mu         sync.RWMutex
	transports map[int64]domain.Transport
	samples    map[int64][]domain.LocationSample
	rosters    map[int64][]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		transports: make(map[int64]domain.Transport),
		samples:    make(map[int64][]domain.LocationSample),
		rosters:    make(map[int64][]int64),
	}
}

// PutTransport seeds or replaces a transport record.
func (s *InMemoryStore) PutTransport(t domain.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transports[t.ID] = t
}

// SetClinicianClients seeds the roster for a clinician.
func (s *InMemoryStore) SetClinicianClients(clinicianID int64, clientIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[clinicianID] = append([]int64(nil), clientIDs...)
}

func (s *InMemoryStore) GetTransport(_ context.Context, id int64) (domain.Transport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.transports[id]; ok {
		return t, nil
	}
	return domain.Transport{}, ErrNotFound
}

func (s *InMemoryStore) UpdateTransportStatus(_ context.Context, id int64, status domain.TransportStatus, startedAt, endedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transports[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	if startedAt != nil {
		t.StartedAt = startedAt
	}
	if endedAt != nil {
		t.EndedAt = endedAt
	}
	s.transports[id] = t
	return nil
}

func (s *InMemoryStore) AppendLocationSample(_ context.Context, sample domain.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transports[sample.TransportID]; !ok {
		return ErrNotFound
	}
	s.samples[sample.TransportID] = append(s.samples[sample.TransportID], sample)
	return nil
}

func (s *InMemoryStore) ClientsForClinician(_ context.Context, clinicianID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.rosters[clinicianID]...), nil
}

// SamplesForTransport returns the persisted ground-truth samples in append
// order. Test-facing; the live core only ever appends.
func (s *InMemoryStore) SamplesForTransport(id int64) []domain.LocationSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LocationSample(nil), s.samples[id]...)
}
