package bookings

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists booking records. Implementations must make
// UpsertBySessionID atomic so one session id never yields two records.
type Store interface {
	UpsertBySessionID(ctx context.Context, sessionID string, fields Fields) (*Record, bool, error)
	Create(ctx context.Context, fields Fields) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
	// Update applies fields to one record in a single write; empty values
	// keep what is stored.
	Update(ctx context.Context, id string, fields Fields) (*Record, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Record, error)
	UpdateSchedule(ctx context.Context, id, date, tm string) (*Record, error)
}

// MemoryStore keeps records in process memory. All mutations go through a
// single lock.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*Record
	order     []string
	bySession map[string]string
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*Record),
		bySession: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UpsertBySessionID merges fields into the record carrying sessionID, or
// creates one. The bool result is true when a record was created.
func (s *MemoryStore) UpsertBySessionID(ctx context.Context, sessionID string, fields Fields) (*Record, bool, error) {
	if err := validateFields(fields); err != nil {
		return nil, false, err
	}
	sessionID = strings.TrimSpace(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if id, ok := s.bySession[sessionID]; ok {
			rec := s.records[id]
			fields.mergeInto(rec)
			rec.UpdatedAt = s.now()
			return rec.clone(), false, nil
		}
	}
	rec := s.insertLocked(sessionID, fields)
	return rec.clone(), true, nil
}

func (s *MemoryStore) Create(ctx context.Context, fields Fields) (*Record, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked("", fields).clone(), nil
}

func (s *MemoryStore) insertLocked(sessionID string, fields Fields) *Record {
	rec := newRecord(uuid.NewString(), sessionID, fields, s.now())
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	if sessionID != "" {
		s.bySession[sessionID] = rec.ID
	}
	return rec
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

// List returns records in creation order.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if filter.matches(rec) {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fields Fields) (*Record, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	fields.mergeInto(rec)
	rec.UpdatedAt = s.now()
	return rec.clone(), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) (*Record, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.Update(ctx, id, Fields{Status: status})
}

// UpdateSchedule changes date and/or time; empty values are left alone.
func (s *MemoryStore) UpdateSchedule(ctx context.Context, id, date, tm string) (*Record, error) {
	return s.Update(ctx, id, Fields{Date: date, Time: tm})
}

func validateFields(f Fields) error {
	if f.Status != "" && !f.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
