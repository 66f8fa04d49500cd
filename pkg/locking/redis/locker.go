// Package redis provides a Locker shared by every API instance pointed at the same Redis.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/machineline/pkg/locking"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 10 * time.Second
	retryBackoff = 25 * time.Millisecond
	keyPrefix    = "machineline:lock:"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
}

// NewLocker connects to the Redis at url (redis://[:password@]host:port/db).
func NewLocker(ctx context.Context, logger *slog.Logger, url string, ttl time.Duration) (*Locker, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewLockerWithClient(client, logger, ttl), nil
}

func NewLockerWithClient(client redis.UniversalClient, logger *slog.Logger, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Locker{client: client, logger: logger, ttl: ttl}
}

// Lock takes the keys in sorted order, polling each until ctx is done. Keys expire after the TTL
// so a crashed holder cannot wedge a machine forever.
func (l *Locker) Lock(ctx context.Context, keys ...string) (locking.Unlock, error) {
	keys = locking.Normalize(keys)

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	held := make([]string, 0, len(keys))

	for _, key := range keys {
		err := l.acquire(ctx, keyPrefix+key, token)
		if err != nil {
			l.release(context.WithoutCancel(ctx), held, token)

			return nil, err
		}

		held = append(held, keyPrefix+key)
	}

	return func(ctx context.Context) error {
		return l.release(ctx, held, token)
	}, nil
}

func (l *Locker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(retryBackoff)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", locking.ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(ctx context.Context, keys []string, token string) error {
	var errs []error

	for i := len(keys) - 1; i >= 0; i-- {
		err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.ErrorContext(ctx, "failed to release lock", "key", keys[i], "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (l *Locker) Close() error {
	return l.client.Close()
}

func newToken() (string, error) {
	buf := make([]byte, 16)

	_, err := rand.Read(buf)
	if err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
