// Package identity resolves the actor a request is made on behalf of.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnknownUser is returned by Lookup for names that aren't registered.
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvalidCredentials is returned by Verify on any mismatch. It does
	// not say whether the name or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is an injected source of actors.
type Store interface {
	// Lookup reports whether username exists.
	Lookup(ctx context.Context, username string) error

	// Verify checks a username/password pair.
	Verify(ctx context.Context, username, password string) error
}

// MemoryStore keeps bcrypt hashes in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string][]byte)}
}

// ParseUsers builds a store from a list of "name:bcrypt-hash" entries, the
// format of the AUTH_USERS variable.
func ParseUsers(entries []string) (*MemoryStore, error) {
	s := NewMemoryStore()
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, hash, ok := strings.Cut(entry, ":")
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("identity: malformed user entry %q", entry)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("identity: user %s: %w", name, err)
		}
		s.hashes[name] = []byte(hash)
	}
	return s, nil
}

// Add registers username with a plaintext password.
func (s *MemoryStore) Add(username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.hashes[username] = []byte(hash)
	s.mu.Unlock()
	return nil
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, username string) error {
	s.mu.RLock()
	_, ok := s.hashes[username]
	s.mu.RUnlock()
	if !ok {
		return ErrUnknownUser
	}
	return nil
}

// Verify implements Store.
func (s *MemoryStore) Verify(_ context.Context, username, password string) error {
	s.mu.RLock()
	hash, ok := s.hashes[username]
	s.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Users returns the registered names, sorted.
func (s *MemoryStore) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.hashes))
	for name := range s.hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HashPassword returns a bcrypt hash suitable for AUTH_USERS.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash password: %w", err)
	}
	return string(hash), nil
}
