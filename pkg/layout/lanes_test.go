package layout_test

import (
	"testing"

	"github.com/dukex/machineline/pkg/layout"
	"github.com/dukex/machineline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredHeight(t *testing.T) {
	t.Parallel()

	geometry := layout.DefaultGeometry()

	assert.InDelta(t, 80, layout.RequiredHeight(nil, geometry), 1e-9)
	assert.InDelta(t, 80, layout.RequiredHeight([]models.Operation{
		op("A", at(10, 0), at(11, 0)),
		op("B", at(11, 0), at(12, 0)),
	}, geometry), 1e-9)
	assert.InDelta(t, 180, layout.RequiredHeight([]models.Operation{
		op("A", at(10, 0), at(12, 0)),
		op("B", at(10, 30), at(12, 0)),
		op("C", at(11, 0), at(12, 0)),
	}, geometry), 1e-9)
}

func TestLanes(t *testing.T) {
	t.Parallel()

	a := op("A", at(10, 0), at(11, 30))
	b := op("B", at(11, 0), at(12, 0))
	c := op("C", at(9, 0), at(10, 0))
	c.MachineID = "M0"

	lanes := layout.Lanes([]models.Operation{a, b, c}, layout.Geometry{BaseHeight: 40, LayerHeight: 20})
	require.Len(t, lanes, 2)

	assert.Equal(t, "M0", lanes[0].MachineID)
	assert.Equal(t, 1, lanes[0].LayerCount)
	assert.InDelta(t, 40, lanes[0].Height, 1e-9)

	assert.Equal(t, "M1", lanes[1].MachineID)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, lanes[1].Layers)
	assert.Equal(t, 2, lanes[1].LayerCount)
	assert.InDelta(t, 60, lanes[1].Height, 1e-9)
}
