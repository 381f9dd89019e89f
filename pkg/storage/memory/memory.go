// Package memory provides an in-memory implementation of
// storage.CredentialStore, loaded once from configuration.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rhuss/authgate/pkg/storage"
)

// Store is an in-memory CredentialStore.
type Store struct {
	mu          sync.RWMutex
	credentials map[string]storage.Credential
}

// Ensure Store implements storage.CredentialStore at compile time.
var _ storage.CredentialStore = (*Store)(nil)

// New creates a store holding creds. Duplicate ids are rejected.
func New(creds []storage.Credential) (*Store, error) {
	s := &Store{credentials: make(map[string]storage.Credential, len(creds))}
	for _, c := range creds {
		if err := s.Put(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put adds a credential. It exists for setup code and tests; the
// dispatcher only reads.
func (s *Store) Put(c storage.Credential) error {
	if c.ID == "" {
		return fmt.Errorf("credential id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[c.ID]; exists {
		return fmt.Errorf("%w: %q", storage.ErrConflict, c.ID)
	}
	c.Scope = append([]string(nil), c.Scope...)
	s.credentials[c.ID] = c
	return nil
}

// Lookup returns a copy of the credential with the given id.
func (s *Store) Lookup(_ context.Context, id string) (*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c.Scope = append([]string(nil), c.Scope...)
	return &c, nil
}

// Len returns the number of stored credentials.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.credentials)
}
