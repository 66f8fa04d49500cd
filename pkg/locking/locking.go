// Package locking provides keyed mutual exclusion around reschedule commits.
package locking

import (
	"context"
	"errors"
	"slices"
)

var ErrLockTimeout = errors.New("lock acquisition timed out")

// Unlock releases every key acquired by the Lock call that returned it.
type Unlock func(ctx context.Context) error

// Locker grants exclusive access to a set of keys.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Unlock, error)
	Close() error
}

// MachineKey is the lock key guarding one machine's operation set.
func MachineKey(machineID string) string {
	return "machine:" + machineID
}

// WorkOrderKey is the lock key guarding one work order's operation chain.
func WorkOrderKey(workOrderID string) string {
	return "workorder:" + workOrderID
}

// Normalize sorts and de-duplicates keys. Acquiring in this order avoids lock cycles.
func Normalize(keys []string) []string {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)

	return slices.Compact(sorted)
}
