package flow

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a flow record does not exist.
var ErrNotFound = errors.New("flow record not found")

// Store is the durable flow-record store. Writes are always scoped to a
// single flow's record, so implementations need no cross-record
// transactionality.
type Store interface {
	// Save persists the record, replacing any existing record with the
	// same flow ID.
	Save(ctx context.Context, record *FlowRecord) error

	// Get retrieves a record by flow ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, flowID string) (*FlowRecord, error)

	// List returns all stored records in unspecified order.
	List(ctx context.Context) ([]*FlowRecord, error)
}

// MemoryStore is an in-process Store. Records are deep-copied on both
// write and read so readers may race with an in-flight writer and see
// only whole snapshots.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*FlowRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*FlowRecord),
	}
}

// Save persists a deep copy of the record.
func (s *MemoryStore) Save(ctx context.Context, record *FlowRecord) error {
	if record == nil || record.FlowID == "" {
		return errors.New("record with flow ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.FlowID] = record.Clone()
	return nil
}

// Get returns a deep copy of the stored record.
func (s *MemoryStore) Get(ctx context.Context, flowID string) (*FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[flowID]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// List returns deep copies of all stored records.
func (s *MemoryStore) List(ctx context.Context) ([]*FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*FlowRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	return out, nil
}
