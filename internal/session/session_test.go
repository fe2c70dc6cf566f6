package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudykangaroo/orchestrate/internal/auth"
	"github.com/cloudykangaroo/orchestrate/internal/credstore"
)

func TestShortID(t *testing.T) {
	cases := map[string]string{
		"https://crowd.local/crowd/rest/usermanagement/1/user/alice": "alice",
		"https://crowd.local/user/alice/":                            "alice",
		"alice":                                                      "alice",
		"":                                                           "",
		"///":                                                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ShortID(in), "input %q", in)
	}
}

func TestCreateResolveDestroy(t *testing.T) {
	store := credstore.NewMemoryStore()
	manager := NewManager(store, time.Hour, nil)
	ctx := context.Background()

	identity := auth.Identity{
		ID:          "https://crowd.local/user/alice",
		Username:    "alice",
		DisplayName: "Alice Admin",
		Groups:      []string{"operations"},
	}

	id, err := manager.Create(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	resolved, err := manager.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, identity.Username, resolved.Username)
	assert.Equal(t, identity.Groups, resolved.Groups)

	require.NoError(t, manager.Destroy(ctx, id))

	_, err = manager.Resolve(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsUnusableID(t *testing.T) {
	manager := NewManager(credstore.NewMemoryStore(), 0, nil)
	_, err := manager.Create(context.Background(), auth.Identity{ID: "///"})
	require.Error(t, err)
}

func TestResolveUnknownID(t *testing.T) {
	manager := NewManager(credstore.NewMemoryStore(), 0, nil)
	_, err := manager.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCorruptRecord(t *testing.T) {
	store := credstore.NewMemoryStore()
	manager := NewManager(store, 0, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user:alice", "{not json", 0))

	_, err := manager.Resolve(ctx, "alice")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestResolveStoreOutageFailsClosed(t *testing.T) {
	store := credstore.NewMemoryStore()
	manager := NewManager(store, 0, nil)
	ctx := context.Background()

	_, err := manager.Create(ctx, auth.Identity{ID: "u/alice", Username: "alice"})
	require.NoError(t, err)

	store.SetFailing(true)
	_, err = manager.Resolve(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound, "store outage must read as an absent session")
	assert.False(t, errors.Is(err, ErrCorrupt))
}
