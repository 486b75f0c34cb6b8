package store

import (
	"context"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, id, use string, createdAt time.Time) *Key {
	t.Helper()

	material, err := jwk.FromRaw([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	require.NoError(t, material.Set(jwk.KeyIDKey, id))

	return &Key{
		ID:        id,
		Use:       use,
		Algorithm: "HS256",
		Material:  material,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.AddDate(0, 0, 90),
	}
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	key := testKey(t, "key-1", UseSignature, time.Now().UTC())
	require.NoError(t, s.Save(ctx, key))

	got, err := s.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "key-1", got.ID)
	assert.Equal(t, UseSignature, got.Use)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStoreCurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Current(ctx, UseSignature)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	now := time.Now().UTC()
	require.NoError(t, s.Save(ctx, testKey(t, "old", UseSignature, now.Add(-time.Hour))))
	require.NoError(t, s.Save(ctx, testKey(t, "new", UseSignature, now)))
	require.NoError(t, s.Save(ctx, testKey(t, "enc", UseEncryption, now)))

	cur, err := s.Current(ctx, UseSignature)
	require.NoError(t, err)
	assert.Equal(t, "new", cur.ID)

	cur, err = s.Current(ctx, UseEncryption)
	require.NoError(t, err)
	assert.Equal(t, "enc", cur.ID)
}

func TestMemoryStoreCurrentSkipsRevoked(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now().UTC()
	require.NoError(t, s.Save(ctx, testKey(t, "old", UseSignature, now.Add(-time.Hour))))
	require.NoError(t, s.Save(ctx, testKey(t, "new", UseSignature, now)))
	require.NoError(t, s.Revoke(ctx, "new"))

	cur, err := s.Current(ctx, UseSignature)
	require.NoError(t, err)
	assert.Equal(t, "old", cur.ID)
}

func TestMemoryStoreLast(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, testKey(t, id, UseSignature, now.Add(time.Duration(i)*time.Second))))
	}

	last, err := s.Last(ctx, UseSignature, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "c", last[0].ID)
	assert.Equal(t, "b", last[1].ID)

	all, err := s.Last(ctx, UseSignature, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.Last(ctx, UseEncryption, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStoreRevoke(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, testKey(t, "key-1", UseSignature, time.Now().UTC())))

	require.NoError(t, s.Revoke(ctx, "key-1"))
	got, err := s.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, got.Revoked())
	assert.False(t, got.Active(time.Now().UTC()))

	assert.ErrorIs(t, s.Revoke(ctx, "key-1"), ErrKeyRevoked)
	assert.ErrorIs(t, s.Revoke(ctx, "missing"), ErrKeyNotFound)
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, testKey(t, "key-1", UseSignature, time.Now().UTC())))
	require.NoError(t, s.Clear(ctx))

	_, err := s.Current(ctx, UseSignature)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, testKey(t, "key-1", UseSignature, time.Now().UTC())))

	got, err := s.Get(ctx, "key-1")
	require.NoError(t, err)
	got.Use = UseEncryption

	again, err := s.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, UseSignature, again.Use)
}

func TestKeyLifecycleHelpers(t *testing.T) {
	now := time.Now().UTC()
	key := testKey(t, "key-1", UseSignature, now)

	assert.True(t, key.Active(now))
	assert.False(t, key.Expired(now))
	assert.True(t, key.Expired(now.AddDate(0, 0, 91)))

	revokedAt := now
	key.RevokedAt = &revokedAt
	assert.True(t, key.Revoked())
	assert.False(t, key.Active(now))
}
