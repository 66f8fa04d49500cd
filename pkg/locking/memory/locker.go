// Package memory provides an in-process Locker for single-instance deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/machineline/pkg/locking"
)

// Locker holds one buffered channel per key; a key is held while its channel is full.
type Locker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[string]chan struct{})}
}

func (l *Locker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}

	return ch
}

// Lock blocks until every key is held or ctx is done. On failure nothing stays held.
func (l *Locker) Lock(ctx context.Context, keys ...string) (locking.Unlock, error) {
	keys = locking.Normalize(keys)
	held := make([]chan struct{}, 0, len(keys))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range keys {
		ch := l.slot(key)

		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()

			return nil, fmt.Errorf("%w: %s: %w", locking.ErrLockTimeout, key, ctx.Err())
		}
	}

	var once sync.Once

	return func(context.Context) error {
		once.Do(release)

		return nil
	}, nil
}

func (l *Locker) Close() error {
	return nil
}
