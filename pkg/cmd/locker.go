package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/machineline/pkg/locking"
	"github.com/dukex/machineline/pkg/locking/memory"
	"github.com/dukex/machineline/pkg/locking/redis"
)

// NewLocker returns a redis-backed locker for redis:// and rediss:// URLs and an in-process one
// otherwise. Only the redis locker is safe with more than one API replica.
func NewLocker(ctx context.Context, logger *slog.Logger, lockURL string, ttl time.Duration) (locking.Locker, error) {
	if strings.HasPrefix(lockURL, "redis://") || strings.HasPrefix(lockURL, "rediss://") {
		locker, err := redis.NewLocker(ctx, logger, lockURL, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis locker: %w", err)
		}

		return locker, nil
	}

	if lockURL != "" && lockURL != "memory" {
		return nil, fmt.Errorf("unsupported lock url: %s", lockURL)
	}

	return memory.NewLocker(), nil
}
