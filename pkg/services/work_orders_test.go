package services

import (
	"errors"
	"testing"

	"github.com/dukex/machineline/pkg/mocks"
	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewWorkOrders(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	service := NewWorkOrders(p, logger)

	assert.NotNil(t, service)
	assert.Equal(t, p, service.persistence)
}

func TestWorkOrders_HealthCheck(t *testing.T) {
	service := NewWorkOrders(file.NewPersistence(t.TempDir()), logger)

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	p := &mocks.MockPersistence{}
	p.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	message, ok = NewWorkOrders(p, logger).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Contains(t, message, "connection refused")
}

func TestWorkOrders_ListAndFetch(t *testing.T) {
	service := NewWorkOrders(seededPersistence(t), logger)

	all, err := service.List(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "WO-1001", all[0].ID)

	wo, err := service.FetchByID(t.Context(), "WO-1002")
	require.NoError(t, err)
	assert.Equal(t, "Hinge", wo.Product)

	_, err = service.FetchByID(t.Context(), "WO-404")
	assert.True(t, IsNotFoundError(err))

	_, err = service.FetchByID(t.Context(), "")
	assert.True(t, IsValidationError(err))
}

func TestWorkOrders_Validate(t *testing.T) {
	p := seededPersistence(t)
	service := NewWorkOrders(p, logger)

	report, err := service.Validate(t.Context(), "WO-1001")
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Violations)

	broken := models.WorkOrder{ID: "WO-2000", Product: "Shaft", Qty: 2, Operations: []models.Operation{
		op("a", "WO-2000", 1, "M1", at(10, 0), at(11, 0)),
		op("b", "WO-2000", 2, "M2", at(10, 30), at(11, 30)),
	}}
	require.NoError(t, p.SaveWorkOrder(t.Context(), &broken))

	report, err = service.Validate(t.Context(), "WO-2000")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, models.RulePrecedenceViolation, report.Violations[0].Rule)
	assert.Equal(t, "b", report.Violations[0].ConflictingOperationID)
}

func TestWorkOrders_Import(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	service := NewWorkOrders(p, logger)

	count, err := service.Import(t.Context(), fixtureWorkOrders())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	all, err := p.WorkOrders(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestWorkOrders_Import_RejectsInvalidBeforeSaving(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	service := NewWorkOrders(p, logger)

	workOrders := fixtureWorkOrders()
	workOrders[2].Qty = 0

	_, err := service.Import(t.Context(), workOrders)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	all, err := p.WorkOrders(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)
}
