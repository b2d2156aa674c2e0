package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// Empty reports whether the delta carries no rows.
func (d Delta) Empty() bool {
	return d.Added.RowCount() == 0 && d.Removed.RowCount() == 0
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// RowCount is the total number of rows over all relations.
func (t Tables) RowCount() int {
	return len(t.Modules) + len(t.Ports) + len(t.Signals) + len(t.Instances) +
		len(t.Bindings) + len(t.Assigns) + len(t.Blocks) + len(t.BlockWrites) +
		len(t.Interfaces) + len(t.Modports) + len(t.InterfaceInstances)
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return r.Name + "|" + r.Hash + "|" + intKey(r.Depth) + "|" + boolKey(r.IsTop) + "|" + r.Comment
	})
	out.Ports = diffRows(from.Ports, to.Ports, func(r PortRow) string {
		return r.Module + "|" + r.Name + "|" + r.Direction + "|" + r.Kind + "|" + intKey(r.Width) + "|" + boolKey(r.Signed) + "|" + r.Interface
	})
	out.Signals = diffRows(from.Signals, to.Signals, func(r SignalRow) string {
		return r.Module + "|" + r.Name + "|" + r.Kind + "|" + intKey(r.Width) + "|" + boolKey(r.Signed) + "|" + boolKey(r.IsPort) +
			"|" + intKey(r.Reads) + "|" + intKey(r.WireReads) + "|" + intKey(r.Writes) + "|" + intKey(r.Triggers)
	})
	out.Instances = diffRows(from.Instances, to.Instances, func(r InstanceRow) string {
		return r.Module + "|" + r.Name + "|" + r.Target + "|" + r.Comment
	})
	out.Bindings = diffRows(from.Bindings, to.Bindings, func(r BindingRow) string {
		return r.Module + "|" + r.Instance + "|" + r.Port + "|" + r.Value + "|" + boolKey(r.Open) + "|" + boolKey(r.Interface)
	})
	out.Assigns = diffRows(from.Assigns, to.Assigns, func(r AssignRow) string {
		return r.Module + "|" + r.Left + "|" + r.Right
	})
	out.Blocks = diffRows(from.Blocks, to.Blocks, func(r BlockRow) string {
		return r.Module + "|" + intKey(r.Index) + "|" + r.Kind + "|" + r.Label + "|" + r.Triggers
	})
	out.BlockWrites = diffRows(from.BlockWrites, to.BlockWrites, func(r BlockWriteRow) string {
		return r.Module + "|" + intKey(r.Block) + "|" + r.Signal + "|" + boolKey(r.Partial)
	})
	out.Interfaces = diffRows(from.Interfaces, to.Interfaces, func(r InterfaceRow) string {
		return r.Name + "|" + r.Member + "|" + intKey(r.Width) + "|" + boolKey(r.Signed) + "|" + boolKey(r.Clock)
	})
	out.Modports = diffRows(from.Modports, to.Modports, func(r ModportRow) string {
		return r.Interface + "|" + r.Modport + "|" + r.Member + "|" + r.Direction
	})
	out.InterfaceInstances = diffRows(from.InterfaceInstances, to.InterfaceInstances, func(r InterfaceInstanceRow) string {
		return r.Module + "|" + r.Name + "|" + r.Interface + "|" + r.Modport + "|" + boolKey(r.IsPort)
	})

	return out
}

func emptyTables() Tables {
	return Tables{
		Modules:            []ModuleRow{},
		Ports:              []PortRow{},
		Signals:            []SignalRow{},
		Instances:          []InstanceRow{},
		Bindings:           []BindingRow{},
		Assigns:            []AssignRow{},
		Blocks:             []BlockRow{},
		BlockWrites:        []BlockWriteRow{},
		Interfaces:         []InterfaceRow{},
		Modports:           []ModportRow{},
		InterfaceInstances: []InterfaceInstanceRow{},
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]T, len(from))
	for _, row := range from {
		fromSet[key(row)] = row
	}
	var diff []T
	for _, row := range to {
		rowKey := key(row)
		if _, ok := fromSet[rowKey]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
