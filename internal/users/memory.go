package users

import (
	"context"
	"sync"
)

// MemoryStore keeps identities in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	byEmail  map[string]*Identity
	profiles map[string]User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEmail:  make(map[string]*Identity),
		profiles: make(map[string]User),
	}
}

// Create stores the identity and its profile.
func (m *MemoryStore) Create(ctx context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[identity.Email]; exists {
		return ErrEmailExists
	}

	stored := *identity
	m.byEmail[identity.Email] = &stored
	m.profiles[identity.ID] = identity.User

	return nil
}

// Profile returns the profile record for a user id.
func (m *MemoryStore) Profile(id string) (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok
}

// Identity returns the stored identity for an email.
func (m *MemoryStore) Identity(email string) (*Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byEmail[email]
	return i, ok
}
