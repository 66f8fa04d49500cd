package models

import (
	"slices"
	"time"
)

// Snapshot is the immutable view of work orders and operations a single validation reasons over.
// MachineVersions carries the commit sequence number of every machine's operation set at read time.
type Snapshot struct {
	WorkOrders      []WorkOrder      `json:"work_orders"`
	Operations      []Operation      `json:"operations"`
	MachineVersions map[string]int64 `json:"machine_versions"`
	TakenAt         time.Time        `json:"taken_at"`
}

// NewSnapshot flattens the work orders' operations into a snapshot.
func NewSnapshot(workOrders []WorkOrder, versions map[string]int64, takenAt time.Time) *Snapshot {
	snapshot := &Snapshot{
		WorkOrders:      make([]WorkOrder, 0, len(workOrders)),
		Operations:      make([]Operation, 0),
		MachineVersions: make(map[string]int64, len(versions)),
		TakenAt:         takenAt,
	}

	for _, wo := range workOrders {
		wo = wo.Clone()
		snapshot.WorkOrders = append(snapshot.WorkOrders, wo)
		snapshot.Operations = append(snapshot.Operations, wo.Operations...)
	}

	for machine, version := range versions {
		snapshot.MachineVersions[machine] = version
	}

	return snapshot
}

// Operation returns the operation with the given id.
func (s *Snapshot) Operation(id string) (Operation, bool) {
	for _, op := range s.Operations {
		if op.ID == id {
			return op, true
		}
	}

	return Operation{}, false
}

// WorkOrder returns the work order with the given id.
func (s *Snapshot) WorkOrder(id string) (WorkOrder, bool) {
	for _, wo := range s.WorkOrders {
		if wo.ID == id {
			return wo, true
		}
	}

	return WorkOrder{}, false
}

// MachineVersion returns the version of a machine's operation set; unknown machines are at 0.
func (s *Snapshot) MachineVersion(machineID string) int64 {
	return s.MachineVersions[machineID]
}

// Machines returns the sorted ids of every machine that has at least one operation.
func (s *Snapshot) Machines() []string {
	seen := make(map[string]struct{})
	machines := make([]string, 0)

	for _, op := range s.Operations {
		if _, ok := seen[op.MachineID]; ok {
			continue
		}

		seen[op.MachineID] = struct{}{}
		machines = append(machines, op.MachineID)
	}

	slices.Sort(machines)

	return machines
}

// OperationsOn returns the operations assigned to a machine.
func (s *Snapshot) OperationsOn(machineID string) []Operation {
	ops := make([]Operation, 0)

	for _, op := range s.Operations {
		if op.MachineID == machineID {
			ops = append(ops, op)
		}
	}

	return ops
}
