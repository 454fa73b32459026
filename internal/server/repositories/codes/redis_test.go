package codes

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_SaveAndConsume(t *testing.T) {
	_, rdb := newTestRedis(t)
	repo := NewRedisRepository(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, PasswordReset, "Alice@Example.com", "AB12CD"))

	ok, err := repo.Consume(ctx, PasswordReset, "alice@example.com", "WRONG1")
	require.NoError(t, err)
	assert.False(t, ok, "mismatch must not match")

	ok, err = repo.Consume(ctx, PasswordReset, "alice@example.com", "AB12CD")
	require.NoError(t, err)
	assert.True(t, ok, "mismatch must not have consumed the stored code")

	ok, err = repo.Consume(ctx, PasswordReset, "alice@example.com", "AB12CD")
	require.NoError(t, err)
	assert.False(t, ok, "codes are single use")
}

func TestRedis_KindsAreSeparate(t *testing.T) {
	_, rdb := newTestRedis(t)
	repo := NewRedisRepository(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, EmailConfirmation, "a@b.io", "CODE01"))

	ok, err := repo.Consume(ctx, PasswordReset, "a@b.io", "CODE01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_SaveOverwrites(t *testing.T) {
	_, rdb := newTestRedis(t)
	repo := NewRedisRepository(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, PasswordReset, "a@b.io", "OLD001"))
	require.NoError(t, repo.Save(ctx, PasswordReset, "a@b.io", "NEW001"))

	ok, err := repo.Consume(ctx, PasswordReset, "a@b.io", "OLD001")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Consume(ctx, PasswordReset, "a@b.io", "NEW001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_Expiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := NewRedisRepository(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, PasswordReset, "a@b.io", "AB12CD"))
	mr.FastForward(2 * time.Minute)

	ok, err := repo.Consume(ctx, PasswordReset, "a@b.io", "AB12CD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := NewRedisRepository(rdb, time.Minute)
	mr.Close()

	assert.Error(t, repo.Save(context.Background(), PasswordReset, "a@b.io", "X"))
	_, err := repo.Consume(context.Background(), PasswordReset, "a@b.io", "X")
	assert.Error(t, err)
}
