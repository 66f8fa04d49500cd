package layout

import (
	"slices"

	"github.com/dukex/machineline/pkg/models"
)

// Geometry describes how tall a lane is drawn.
type Geometry struct {
	BaseHeight  float64 `json:"base_height"  yaml:"base_height"`
	LayerHeight float64 `json:"layer_height" yaml:"layer_height"`
}

// DefaultGeometry matches the timeline renderer: an 80px lane plus 50px per extra layer.
func DefaultGeometry() Geometry {
	return Geometry{BaseHeight: 80, LayerHeight: 50}
}

// Height returns the lane height needed for the given number of layers.
func (g Geometry) Height(layerCount int) float64 {
	if layerCount <= 1 {
		return g.BaseHeight
	}

	return g.BaseHeight + float64(layerCount-1)*g.LayerHeight
}

// RequiredHeight computes the layers of ops and the lane height they need.
func RequiredHeight(ops []models.Operation, geometry Geometry) float64 {
	return geometry.Height(LayerCount(AssignLayers(ops)))
}

// Lane is the derived layout of one machine.
type Lane struct {
	MachineID  string         `json:"machine_id"`
	Layers     map[string]int `json:"layers"`
	LayerCount int            `json:"layer_count"`
	Height     float64        `json:"height"`
}

// ByMachine groups operations by machine id.
func ByMachine(ops []models.Operation) map[string][]models.Operation {
	groups := make(map[string][]models.Operation)

	for _, op := range ops {
		groups[op.MachineID] = append(groups[op.MachineID], op)
	}

	return groups
}

// Lanes lays out every machine found in ops, sorted by machine id.
func Lanes(ops []models.Operation, geometry Geometry) []Lane {
	groups := ByMachine(ops)

	machines := make([]string, 0, len(groups))
	for machine := range groups {
		machines = append(machines, machine)
	}

	slices.Sort(machines)

	lanes := make([]Lane, 0, len(machines))

	for _, machine := range machines {
		layers := AssignLayers(groups[machine])
		count := LayerCount(layers)

		lanes = append(lanes, Lane{
			MachineID:  machine,
			Layers:     layers,
			LayerCount: count,
			Height:     geometry.Height(count),
		})
	}

	return lanes
}
