// Package seed loads work order data sets, either the embedded default or an import file.
package seed

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var (
	//go:embed data/work_orders.json
	defaultData []byte

	//go:embed data/work_orders.schema.json
	schema []byte
)

// ErrInvalidDocument is returned when an import document does not match the work order schema.
var ErrInvalidDocument = errors.New("invalid work order document")

// Day is the calendar day the default data set is scheduled on.
var Day = time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC)

// Default returns the built-in data set.
func Default() ([]models.WorkOrder, error) {
	return Parse(defaultData)
}

// Schema returns the JSON schema import documents are checked against.
func Schema() []byte {
	return schema
}

// Parse checks data against the schema and decodes it.
func Parse(data []byte) ([]models.WorkOrder, error) {
	if err := validateJSONSchema(data); err != nil {
		return nil, err
	}

	var workOrders []models.WorkOrder
	if err := json.Unmarshal(data, &workOrders); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return workOrders, nil
}

// Rebase shifts every operation so the data set's day becomes the day of to. Times of day are kept.
func Rebase(workOrders []models.WorkOrder, from, to time.Time) []models.WorkOrder {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	shift := to.Sub(from)

	rebased := make([]models.WorkOrder, 0, len(workOrders))

	for _, wo := range workOrders {
		wo = wo.Clone()
		for i := range wo.Operations {
			wo.Operations[i].Start = wo.Operations[i].Start.Add(shift)
			wo.Operations[i].End = wo.Operations[i].End.Add(shift)
		}

		rebased = append(rebased, wo)
	}

	return rebased
}

func validateJSONSchema(data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(errs, "; "))
	}

	return nil
}
