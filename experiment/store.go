package experiment

import (
	"sync"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// Store persists experiment records by key. Write never replaces an
// existing record: a second write for the same key fails with
// ErrCheckpointExists.
type Store interface {
	Exists(key Key) (bool, error)
	Read(key Key) (*Record, error)
	Write(key Key, rec *Record) error
}

// MemoryStore is an in-process Store. Records are deep-copied on the way
// in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key][]byte)}
}

func (s *MemoryStore) Exists(key Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok, nil
}

func (s *MemoryStore) Read(key Key) (*Record, error) {
	s.mu.RLock()
	frame, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewCheckpointError("read", key.String(), errors.ErrCheckpointNotFound)
	}
	rec, err := decodeRecord(frame)
	if err != nil {
		return nil, errors.NewCheckpointError("read", key.String(), err)
	}
	return rec, nil
}

func (s *MemoryStore) Write(key Key, rec *Record) error {
	frame, err := encodeRecord(rec)
	if err != nil {
		return errors.NewCheckpointError("write", key.String(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return errors.NewCheckpointError("write", key.String(), errors.ErrCheckpointExists)
	}
	s.records[key] = frame
	return nil
}

// Keys returns the stored keys in no particular order.
func (s *MemoryStore) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}
