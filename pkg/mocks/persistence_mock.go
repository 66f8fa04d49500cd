package mocks

import (
	"context"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

var _ persistence.Persistence = (*MockPersistence)(nil)

func (m *MockPersistence) WorkOrders(ctx context.Context) ([]*models.WorkOrder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkOrder), args.Error(1)
}

func (m *MockPersistence) WorkOrderByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockPersistence) SaveWorkOrder(ctx context.Context, workOrder *models.WorkOrder) error {
	args := m.Called(ctx, workOrder)

	return args.Error(0)
}

func (m *MockPersistence) DeleteWorkOrder(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) OperationByID(ctx context.Context, id string) (*models.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Operation), args.Error(1)
}

func (m *MockPersistence) OperationsByMachine(ctx context.Context, machineID string, from, to *time.Time) ([]*models.Operation, error) {
	args := m.Called(ctx, machineID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Operation), args.Error(1)
}

func (m *MockPersistence) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockPersistence) CommitPlacement(ctx context.Context, placement models.Placement, expected map[string]int64) (*models.Operation, error) {
	args := m.Called(ctx, placement, expected)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Operation), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
