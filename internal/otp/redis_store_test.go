package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	phone string
	code  string
}

func (s *captureSender) SendCode(_ context.Context, phone, code string) error {
	s.phone = phone
	s.code = code
	return nil
}

func newTestStore(t *testing.T) (*RedisStore, *captureSender) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sender := &captureSender{}
	store := NewRedisStore(rdb, sender, StoreConfig{
		TTL:           5 * time.Minute,
		MaxAttempts:   3,
		IssueInterval: time.Minute,
	})
	return store, sender
}

const testPhone = "+4915112345678"

func TestIssueAndVerify(t *testing.T) {
	store, sender := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, testPhone))
	assert.Equal(t, testPhone, sender.phone)
	assert.Len(t, sender.code, 6)

	result, err := store.Verify(ctx, testPhone, sender.code)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, result.Status)

	// A code is single-use.
	result, err = store.Verify(ctx, testPhone, sender.code)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, result.Status)
}

func TestVerifyNeverIssued(t *testing.T) {
	store, _ := newTestStore(t)

	result, err := store.Verify(context.Background(), testPhone, "000000")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, result.Status)
}

func TestVerifyWrongCodeBurnsAttempts(t *testing.T) {
	store, sender := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Issue(ctx, testPhone))

	wrong := "000000"
	if sender.code == wrong {
		wrong = "000001"
	}

	result, err := store.Verify(ctx, testPhone, wrong)
	require.NoError(t, err)
	assert.Equal(t, StatusWrongCode, result.Status)
	assert.Equal(t, 2, result.AttemptsLeft)

	result, err = store.Verify(ctx, testPhone, wrong)
	require.NoError(t, err)
	assert.Equal(t, StatusWrongCode, result.Status)
	assert.Equal(t, 1, result.AttemptsLeft)

	result, err = store.Verify(ctx, testPhone, wrong)
	require.NoError(t, err)
	assert.Equal(t, StatusTooManyAttempts, result.Status)

	// The right code no longer works after lockout.
	result, err = store.Verify(ctx, testPhone, sender.code)
	require.NoError(t, err)
	assert.Equal(t, StatusTooManyAttempts, result.Status)
}

func TestVerifyExpiredCode(t *testing.T) {
	store, sender := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Issue(ctx, testPhone))

	store.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	result, err := store.Verify(ctx, testPhone, sender.code)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, result.Status, "expired is distinct from never issued")

	// The expired key is gone; the next probe reads not_found.
	result, err = store.Verify(ctx, testPhone, sender.code)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, result.Status)
}

func TestIssueRateLimited(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, testPhone))
	err := store.Issue(ctx, testPhone)
	assert.ErrorIs(t, err, ErrRateLimited)

	// Another phone has its own budget.
	assert.NoError(t, store.Issue(ctx, "+4915198765432"))
}

func TestReissueReplacesCode(t *testing.T) {
	store, sender := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, testPhone))
	first := sender.code

	// Sidestep the per-phone limiter the way a later request would.
	store.mu.Lock()
	delete(store.limiters, testPhone)
	store.mu.Unlock()

	require.NoError(t, store.Issue(ctx, testPhone))
	if first == sender.code {
		t.Skip("codes collided; nothing to assert")
	}

	result, err := store.Verify(ctx, testPhone, first)
	require.NoError(t, err)
	assert.Equal(t, StatusWrongCode, result.Status, "the old code is dead")

	result, err = store.Verify(ctx, testPhone, sender.code)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, result.Status)
}
