// Package userdb implements the user database the wire server
// authenticates against: a process-wide, RW-lock-guarded map of usernames
// to bcrypt password hashes. It is the one shared resource in this repo
// whose storage is a bcrypt hash, not plaintext, per the wire server's
// "explicit username/password verified against a user database
// (bcrypt-hashed)" auth mode. Persisting this store across restarts is an
// external collaborator's concern; this package only keeps it in memory
// and verifies against it.
package userdb

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Store is a read-dominated, RWMutex-guarded map of username to bcrypt
// hash. Construct it with New; SetPassword panics on the zero value,
// whose map is not allocated.
type Store struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

// New returns an empty user database.
func New() *Store {
	return &Store{hashes: make(map[string][]byte)}
}

// SetPassword hashes password with bcrypt's default cost and installs it
// for username, overwriting any existing entry.
func (s *Store) SetPassword(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("userdb: hash password for %q: %w", username, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[username] = hash
	return nil
}

// Verify implements pgwire.UserVerifier: it reports whether password
// matches username's stored bcrypt hash. An unknown username reports
// (false, nil) rather than an error, so the wire server's fallback
// password path still gets a chance to authenticate the connection.
func (s *Store) Verify(ctx context.Context, username, password string) (bool, error) {
	s.mu.RLock()
	hash, ok := s.hashes[username]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if err == nil {
		return true, nil
	}
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return false, fmt.Errorf("userdb: verify %q: %w", username, err)
}
