// Package session maps opaque session identifiers to serialized identity
// records persisted in the credential store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/auth"
	"github.com/cloudykangaroo/orchestrate/internal/credstore"
	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

var (
	// ErrNotFound indicates no record exists for the session id.
	ErrNotFound = errors.New("session: not found")
	// ErrCorrupt indicates the stored record could not be deserialized.
	ErrCorrupt = errors.New("session: corrupt record")
)

const keyPrefix = "user:"

// Manager owns the login/logout lifecycle of sessions.
type Manager struct {
	store credstore.Store
	ttl   time.Duration
	log   *logging.Logger
}

// NewManager creates a session manager over the given store. A zero ttl
// persists sessions until store eviction.
func NewManager(store credstore.Store, ttl time.Duration, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewDefault("session")
	}
	return &Manager{store: store, ttl: ttl, log: log}
}

// Create persists the identity and returns the session-bound identifier:
// the trailing path segment of the directory-assigned identity ID.
func (m *Manager) Create(ctx context.Context, identity auth.Identity) (string, error) {
	id := ShortID(identity.ID)
	if id == "" {
		return "", fmt.Errorf("session: identity has no usable id: %q", identity.ID)
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("session: serialize identity: %w", err)
	}

	if err := m.store.Set(ctx, keyPrefix+id, string(data), m.ttl); err != nil {
		return "", fmt.Errorf("session: persist identity: %w", err)
	}
	return id, nil
}

// Resolve looks up the identity for a session id. A missing key yields
// ErrNotFound; a malformed record yields ErrCorrupt; a store outage is
// logged and reported as ErrNotFound so the pipeline fails closed instead
// of failing the request.
func (m *Manager) Resolve(ctx context.Context, id string) (*auth.Identity, error) {
	data, err := m.store.Get(ctx, keyPrefix+id)
	if errors.Is(err, credstore.ErrMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		m.log.WithContext(ctx).WithError(err).Error("credential store unavailable, treating session as absent")
		return nil, ErrNotFound
	}

	var identity auth.Identity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &identity, nil
}

// Destroy removes the session record.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	return m.store.Delete(ctx, keyPrefix+id)
}

// ShortID returns the trailing path segment of a directory-assigned
// identity ID, or "" when nothing usable remains.
func ShortID(identityID string) string {
	trimmed := strings.TrimRight(identityID, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return trimmed
}
