// Package web provides HTTP handlers and REST API endpoints for machine schedule management.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/machineline/pkg/seed"
	"github.com/dukex/machineline/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const dateLayout = "2006-01-02"

type APIHandlers struct {
	workOrders *services.WorkOrders
	scheduling *services.Scheduling
	timeline   *services.Timeline
	validator  *validator.Validate
}

func NewAPIHandlers(
	workOrders *services.WorkOrders,
	scheduling *services.Scheduling,
	timeline *services.Timeline,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workOrders: workOrders,
		scheduling: scheduling,
		timeline:   timeline,
		validator:  validator,
	}
}

func (h *APIHandlers) GetWorkOrders(c fiber.Ctx) error {
	workOrders, err := h.workOrders.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workOrders)
}

func (h *APIHandlers) GetWorkOrder(c fiber.Ctx) error {
	workOrder, err := h.workOrders.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workOrder)
}

// ValidateWorkOrder reports precedence problems in the stored schedule of one work order.
func (h *APIHandlers) ValidateWorkOrder(c fiber.Ctx) error {
	result, err := h.workOrders.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) DeleteWorkOrder(c fiber.Ctx) error {
	if err := h.workOrders.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ImportWorkOrders stores a JSON array of work orders after checking it against the import schema.
func (h *APIHandlers) ImportWorkOrders(c fiber.Ctx) error {
	workOrders, err := seed.Parse(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	imported, err := h.workOrders.Import(c.Context(), workOrders)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ImportResponse{Imported: imported})
}

// UpdateOperation moves an operation. A change that breaks a scheduling rule is answered with 400
// and the list of violations.
func (h *APIHandlers) UpdateOperation(c fiber.Ctx) error {
	var req UpdateOperationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.scheduling.UpdateOperation(c.Context(), c.Params("operationId"), services.UpdateOperationRequest{
		MachineID: req.MachineID,
		Start:     req.Start,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if !result.Accepted {
		return rejected(c, result.Violations)
	}

	return c.JSON(result.ResolvedOperation)
}

// Reschedule validates and commits a move. Rejections are a normal answer, not an HTTP error.
func (h *APIHandlers) Reschedule(c fiber.Ctx) error {
	var req RescheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.scheduling.Reschedule(c.Context(), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) PreviewReschedule(c fiber.Ctx) error {
	var req RescheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.scheduling.Preview(c.Context(), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) Drop(c fiber.Ctx) error {
	var req DropRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.scheduling.Drop(c.Context(), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// GetTimeline returns the lane layout. With start, end and width the bars carry pixel positions.
func (h *APIHandlers) GetTimeline(c fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	data, err := h.timeline.Data(c.Context(), window)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(data)
}

func (h *APIHandlers) GetMachineSchedule(c fiber.Ctx) error {
	from, err := parseTime(c.Query("start_date"), false)
	if err != nil {
		return badRequest(c, "Invalid start_date format. Use ISO format.")
	}

	to, err := parseTime(c.Query("end_date"), true)
	if err != nil {
		return badRequest(c, "Invalid end_date format. Use ISO format.")
	}

	machineID := c.Params("machineId")

	operations, err := h.timeline.MachineSchedule(c.Context(), machineID, from, to)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"machine_id": machineID,
		"operations": operations,
		"start_date": from,
		"end_date":   to,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workOrders.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Machineline API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Machineline API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// NotFound answers any route the API does not serve.
func (h *APIHandlers) NotFound(c fiber.Ctx) error {
	return notFound(c, "route "+c.Method()+" "+c.Path()+" not found")
}

func parseWindow(c fiber.Ctx) (*services.Window, error) {
	startStr, endStr, widthStr := c.Query("start"), c.Query("end"), c.Query("width")
	if startStr == "" && endStr == "" && widthStr == "" {
		return nil, nil
	}

	if startStr == "" || endStr == "" || widthStr == "" {
		return nil, errors.New("start, end and width must be given together")
	}

	start, err := parseTime(startStr, false)
	if err != nil {
		return nil, err
	}

	end, err := parseTime(endStr, true)
	if err != nil {
		return nil, err
	}

	width, err := strconv.ParseFloat(widthStr, 64)
	if err != nil {
		return nil, err
	}

	return &services.Window{Start: *start, End: *end, Width: width}, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates. A plain date used as an upper bound covers
// the whole day.
func parseTime(value string, upper bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		ts = ts.UTC()

		return &ts, nil
	}

	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}

	if upper {
		day = day.AddDate(0, 0, 1)
	}

	return &day, nil
}
