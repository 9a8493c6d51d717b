package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// StoreConfig holds code lifetime and attempt limits.
type StoreConfig struct {
	// TTL is how long an issued code stays valid.
	TTL time.Duration
	// MaxAttempts is the number of wrong codes tolerated before lockout.
	MaxAttempts int
	// IssueInterval is the minimum spacing between codes per phone.
	IssueInterval time.Duration
}

// DefaultStoreConfig returns the default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		TTL:           5 * time.Minute,
		MaxAttempts:   3,
		IssueInterval: time.Minute,
	}
}

// RedisStore keeps per-phone codes in redis hashes with a TTL. The hash
// outlives the code's expiry so Verify can distinguish "expired" from
// "never issued".
type RedisStore struct {
	rdb    *redis.Client
	sender Sender
	cfg    StoreConfig
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// housekeepTTL is the redis key TTL, kept well past code expiry.
const housekeepTTL = 24 * time.Hour

// NewRedisStore creates a redis-backed OTP store.
func NewRedisStore(rdb *redis.Client, sender Sender, cfg StoreConfig) *RedisStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultStoreConfig().TTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultStoreConfig().MaxAttempts
	}
	if cfg.IssueInterval <= 0 {
		cfg.IssueInterval = DefaultStoreConfig().IssueInterval
	}
	return &RedisStore{
		rdb:      rdb,
		sender:   sender,
		cfg:      cfg,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// ErrRateLimited is returned when codes are requested too frequently.
var ErrRateLimited = fmt.Errorf("otp: too many code requests")

func key(phone string) string { return "otp:" + phone }

// Issue generates a fresh code for phone, stores it, and hands it to the
// sender. A new code replaces any outstanding one.
func (s *RedisStore) Issue(ctx context.Context, phone string) error {
	if !s.limiter(phone).Allow() {
		return ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	expiresAt := s.now().Add(s.cfg.TTL).Unix()
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(phone))
	pipe.HSet(ctx, key(phone), "code", code, "attempts", 0, "expires_at", expiresAt)
	pipe.Expire(ctx, key(phone), housekeepTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

// Verify checks a submitted code. A correct code is consumed; a wrong one
// burns an attempt.
func (s *RedisStore) Verify(ctx context.Context, phone, code string) (Result, error) {
	fields, err := s.rdb.HGetAll(ctx, key(phone)).Result()
	if err != nil {
		return Result{}, fmt.Errorf("load code: %w", err)
	}
	if len(fields) == 0 {
		return Result{Status: StatusNotFound}, nil
	}

	expiresAt, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	if s.now().Unix() > expiresAt {
		_ = s.rdb.Del(ctx, key(phone)).Err()
		return Result{Status: StatusExpired}, nil
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	if attempts >= s.cfg.MaxAttempts {
		return Result{Status: StatusTooManyAttempts}, nil
	}

	if fields["code"] != code {
		attempts, err := s.rdb.HIncrBy(ctx, key(phone), "attempts", 1).Result()
		if err != nil {
			return Result{}, fmt.Errorf("count attempt: %w", err)
		}
		left := s.cfg.MaxAttempts - int(attempts)
		if left <= 0 {
			return Result{Status: StatusTooManyAttempts}, nil
		}
		return Result{Status: StatusWrongCode, AttemptsLeft: left}, nil
	}

	if err := s.rdb.Del(ctx, key(phone)).Err(); err != nil {
		return Result{}, fmt.Errorf("consume code: %w", err)
	}
	return Result{Status: StatusVerified}, nil
}

func (s *RedisStore) limiter(phone string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[phone]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.cfg.IssueInterval), 1)
		s.limiters[phone] = l
	}
	return l
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
