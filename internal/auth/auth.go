// Package auth verifies user credentials against a directory service and
// tracks the verified identities seen during the process lifetime.
package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrBadCredentials indicates the directory rejected the username/password
// pair. Callers treat it as "unauthenticated", never as a server failure.
var ErrBadCredentials = errors.New("auth: invalid credentials")

// Identity is a verified user record from the directory service.
type Identity struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Groups      []string `json:"groups"`
}

// HasGroup reports whether the identity is a member of the named group.
func (id Identity) HasGroup(group string) bool {
	for _, g := range id.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Verifier is the pluggable credential-verification capability.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, username, password string) (Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, username, password string) (Identity, error) {
	return f(ctx, username, password)
}

// Roster is the append-only, deduplicated set of identities verified since
// process start. Entries are never removed.
type Roster struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	users []Identity
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{seen: make(map[string]struct{})}
}

// Add records the identity unless one with the same ID is already present.
func (r *Roster) Add(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id.ID]; ok {
		return
	}
	r.seen[id.ID] = struct{}{}
	r.users = append(r.users, id)
}

// Users returns a copy of the roster contents.
func (r *Roster) Users() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, len(r.users))
	copy(out, r.users)
	return out
}

// Len returns the number of distinct identities verified so far.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
