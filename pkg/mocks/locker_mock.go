package mocks

import (
	"context"

	"github.com/dukex/machineline/pkg/locking"
	"github.com/stretchr/testify/mock"
)

// MockLocker is a mock implementation of locking.Locker interface.
type MockLocker struct {
	mock.Mock
}

var _ locking.Locker = (*MockLocker)(nil)

func (m *MockLocker) Lock(ctx context.Context, keys ...string) (locking.Unlock, error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(locking.Unlock), args.Error(1)
}

func (m *MockLocker) Close() error {
	args := m.Called()

	return args.Error(0)
}
