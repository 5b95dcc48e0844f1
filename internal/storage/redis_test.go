package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client)
}

func TestRedis_SetGet(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	require.NoError(t, store.Set(ctx, "s1", KeyCart, "[1,2]", 0))

	v, err := store.Get(ctx, "s1", KeyCart)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", v)
	assert.True(t, mr.Exists("session:s1:cart"))
}

func TestRedis_GetMissing(t *testing.T) {
	_, store := setupRedis(t)
	_, err := store.Get(context.Background(), "s1", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	require.NoError(t, store.Set(ctx, "s1", KeyPendingOrder, "{}", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s1", KeyPendingOrder)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_SetNX(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	ok, err := store.SetNX(ctx, "s1", OrderClaimKey("p"), "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetNX(ctx, "s1", OrderClaimKey("p"), "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = store.SetNX(ctx, "s1", OrderClaimKey("p"), "3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	require.NoError(t, store.Set(ctx, "s1", KeyCart, "[]", 0))
	require.NoError(t, store.Set(ctx, "s1", KeyToken, "t", 0))
	require.NoError(t, store.Delete(ctx, "s1", KeyCart, KeyToken))

	assert.False(t, mr.Exists("session:s1:cart"))
	assert.False(t, mr.Exists("session:s1:token"))
	require.NoError(t, store.Delete(ctx, "s1"))
}

func TestRedis_Ping(t *testing.T) {
	mr, store := setupRedis(t)
	require.NoError(t, store.Ping(context.Background()))
	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
