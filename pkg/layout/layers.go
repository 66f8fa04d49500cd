// Package layout assigns concurrent operations on one machine to display layers so they can be
// drawn without visual collision.
package layout

import (
	"container/heap"
	"slices"
	"strings"
	"time"

	"github.com/dukex/machineline/pkg/models"
)

// AssignLayers places each operation on the lowest layer whose previous operation ends at or
// before it starts. The result does not depend on the input order.
func AssignLayers(ops []models.Operation) map[string]int {
	layers := make(map[string]int, len(ops))
	cursors := make([]time.Time, 0)

	for _, op := range sortByStart(ops) {
		assigned := -1

		for layer, end := range cursors {
			if !end.After(op.Start) {
				assigned = layer
				cursors[layer] = op.End

				break
			}
		}

		if assigned == -1 {
			assigned = len(cursors)
			cursors = append(cursors, op.End)
		}

		layers[op.ID] = assigned
	}

	return layers
}

// LayerCount is max(layer)+1, or 0 for an empty assignment.
func LayerCount(layers map[string]int) int {
	count := 0

	for _, layer := range layers {
		if layer+1 > count {
			count = layer + 1
		}
	}

	return count
}

// MaxConcurrency returns the largest number of operations that are pairwise overlapping at one
// instant, which is the minimal number of layers any assignment can use.
func MaxConcurrency(ops []models.Operation) int {
	active := &endHeap{}
	peak := 0

	for _, op := range sortByStart(ops) {
		for active.Len() > 0 && !(*active)[0].After(op.Start) {
			heap.Pop(active)
		}

		heap.Push(active, op.End)

		if active.Len() > peak {
			peak = active.Len()
		}
	}

	return peak
}

// sortByStart orders by start, then id. On equal starts a zero-duration operation goes first so it
// never opens an extra layer above an operation starting at its instant.
func sortByStart(ops []models.Operation) []models.Operation {
	sorted := slices.Clone(ops)
	slices.SortFunc(sorted, func(a, b models.Operation) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}

		if aZero, bZero := a.Start.Equal(a.End), b.Start.Equal(b.End); aZero != bZero {
			if aZero {
				return -1
			}

			return 1
		}

		return strings.Compare(a.ID, b.ID)
	})

	return sorted
}

type endHeap []time.Time

func (h endHeap) Len() int           { return len(h) }
func (h endHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h endHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *endHeap) Push(x any)        { *h = append(*h, x.(time.Time)) }

func (h *endHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}
