package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	sess, err := store.Create(ctx, 42, "a@x.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.UserID)
	assert.Equal(t, "a@x.com", got.Email)
}

func TestMemoryStore_UnknownID(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	sess, err := store.Create(ctx, 42, "a@x.com", -time.Second)
	require.NoError(t, err)

	// Already past its max age; Get must behave like an unknown id even
	// before the janitor sweeps it.
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	sess, err := store.Create(ctx, 42, "a@x.com", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	// Deleting again is harmless.
	assert.NoError(t, store.Delete(ctx, sess.ID))
}
