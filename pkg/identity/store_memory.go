package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
)

type mappingKey struct {
	personID     string
	personIDType ecsauth.PersonIDType
}

// MemoryStore is an in-memory Store for tests and single-node setups.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	mappings map[mappingKey]*Mapping
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		mappings: make(map[mappingKey]*Mapping),
	}
}

var _ Store = (*MemoryStore)(nil)

func copyMapping(m *Mapping) *Mapping {
	copied := *m
	copied.Pids = append([]PidRef(nil), m.Pids...)
	if m.LastEnrolled != nil {
		at := *m.LastEnrolled
		copied.LastEnrolled = &at
	}
	return &copied
}

func (s *MemoryStore) Find(ctx context.Context, personID string, personIDType ecsauth.PersonIDType) (*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapping, ok := s.mappings[mappingKey{personID, personIDType}]
	if !ok {
		return nil, ErrMappingNotFound
	}
	return copyMapping(mapping), nil
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, mapping := range s.mappings {
		if mapping.Username == username {
			return copyMapping(mapping), nil
		}
	}
	return nil, ErrMappingNotFound
}

func (s *MemoryStore) Create(ctx context.Context, mapping *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mappingKey{mapping.PersonID, mapping.PersonIDType}
	if _, ok := s.mappings[key]; ok {
		return ErrDuplicateMapping
	}
	mapping.ID = s.nextID
	s.nextID++
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}
	s.mappings[key] = copyMapping(mapping)
	return nil
}

func (s *MemoryStore) AppendPid(ctx context.Context, personID string, personIDType ecsauth.PersonIDType, pid PidRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.mappings[mappingKey{personID, personIDType}]
	if !ok {
		return ErrMappingNotFound
	}
	for _, existing := range mapping.Pids {
		if existing == pid {
			return nil
		}
	}
	mapping.Pids = append(mapping.Pids, pid)
	return nil
}

func (s *MemoryStore) SetLastEnrolled(ctx context.Context, personID string, personIDType ecsauth.PersonIDType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.mappings[mappingKey{personID, personIDType}]
	if !ok {
		return ErrMappingNotFound
	}
	mapping.LastEnrolled = &at
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, personID string, personIDType ecsauth.PersonIDType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mappingKey{personID, personIDType}
	if _, ok := s.mappings[key]; !ok {
		return ErrMappingNotFound
	}
	delete(s.mappings, key)
	return nil
}

func (s *MemoryStore) ListNeverEnrolled(ctx context.Context) ([]*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Mapping
	for _, mapping := range s.mappings {
		if mapping.LastEnrolled == nil {
			matches = append(matches, copyMapping(mapping))
		}
	}
	sortMappings(matches)
	return matches, nil
}

func (s *MemoryStore) ListEnrolledBefore(ctx context.Context, hubID string, cutoff time.Time) ([]*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Mapping
	for _, mapping := range s.mappings {
		if mapping.HubID != hubID || mapping.LastEnrolled == nil {
			continue
		}
		if mapping.LastEnrolled.Before(cutoff) {
			matches = append(matches, copyMapping(mapping))
		}
	}
	sortMappings(matches)
	return matches, nil
}

func sortMappings(mappings []*Mapping) {
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].ID < mappings[j].ID })
}
