package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidWorkOrder is returned when a work order breaks one of its invariants.
var ErrInvalidWorkOrder = errors.New("invalid work order")

// WorkOrder is a production job made of an ordered sequence of operations.
type WorkOrder struct {
	ID         string      `json:"id"         validate:"required"`
	Product    string      `json:"product"    validate:"required"`
	Qty        int         `json:"qty"        validate:"min=1"`
	Operations []Operation `json:"operations" validate:"dive"`
}

// SortedOperations returns a copy of the operations ordered by index.
func (w WorkOrder) SortedOperations() []Operation {
	ops := slices.Clone(w.Operations)
	slices.SortFunc(ops, func(a, b Operation) int {
		if a.Index != b.Index {
			return a.Index - b.Index
		}

		return strings.Compare(a.ID, b.ID)
	})

	return ops
}

// Clone returns a deep copy so callers can mutate it without touching a shared snapshot.
func (w WorkOrder) Clone() WorkOrder {
	w.Operations = slices.Clone(w.Operations)

	return w
}

// Validate checks quantity, operation ownership, time ranges and index uniqueness.
func (w WorkOrder) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidWorkOrder)
	}

	if w.Qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidWorkOrder, w.Qty)
	}

	seenIndex := make(map[int]string, len(w.Operations))

	for _, op := range w.Operations {
		if op.WorkOrderID != w.ID {
			return fmt.Errorf("%w: operation %s belongs to work order %s", ErrInvalidWorkOrder, op.ID, op.WorkOrderID)
		}

		if err := op.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidWorkOrder, err)
		}

		if other, ok := seenIndex[op.Index]; ok {
			return fmt.Errorf("%w: operations %s and %s share index %d", ErrInvalidWorkOrder, other, op.ID, op.Index)
		}

		seenIndex[op.Index] = op.ID
	}

	return nil
}
