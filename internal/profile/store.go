package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when no profile exists for the requested id.
var ErrNotFound = errors.New("profile not found")

// Store resolves a profile name to its rule set. Read path only; the
// pipeline never writes profiles.
type Store interface {
	Resolve(ctx context.Context, id string) (*Profile, error)
}

// Lister enumerates every available profile, ordered by id. Optional
// capability of a Store, backing the profile listing endpoint.
type Lister interface {
	List(ctx context.Context) ([]*Profile, error)
}

// MemoryStore is an in-memory Store, used for tests and embedded setups.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates a store pre-populated with the given profiles.
func NewMemoryStore(profiles ...*Profile) *MemoryStore {
	s := &MemoryStore{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

// Put registers a profile. Profiles are treated as immutable once stored.
func (s *MemoryStore) Put(p *Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

// Resolve implements Store.
func (s *MemoryStore) Resolve(_ context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, ErrNotFound)
	}
	return p, nil
}

// List implements Lister.
func (s *MemoryStore) List(_ context.Context) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
