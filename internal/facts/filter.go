package facts

// FilterTablesByModules returns a new Tables object containing only rows
// belonging to the named modules. Interface and modport rows are kept when
// a kept module declares an instance or port of that interface.
func FilterTablesByModules(tables Tables, modules map[string]bool) Tables {
	if len(modules) == 0 {
		return emptyTables()
	}
	out := emptyTables()

	for _, row := range tables.Modules {
		if modules[row.Name] {
			out.Modules = append(out.Modules, row)
		}
	}
	for _, row := range tables.Ports {
		if modules[row.Module] {
			out.Ports = append(out.Ports, row)
		}
	}
	for _, row := range tables.Signals {
		if modules[row.Module] {
			out.Signals = append(out.Signals, row)
		}
	}
	for _, row := range tables.Instances {
		if modules[row.Module] {
			out.Instances = append(out.Instances, row)
		}
	}
	for _, row := range tables.Bindings {
		if modules[row.Module] {
			out.Bindings = append(out.Bindings, row)
		}
	}
	for _, row := range tables.Assigns {
		if modules[row.Module] {
			out.Assigns = append(out.Assigns, row)
		}
	}
	for _, row := range tables.Blocks {
		if modules[row.Module] {
			out.Blocks = append(out.Blocks, row)
		}
	}
	for _, row := range tables.BlockWrites {
		if modules[row.Module] {
			out.BlockWrites = append(out.BlockWrites, row)
		}
	}

	used := make(map[string]bool)
	for _, row := range tables.InterfaceInstances {
		if modules[row.Module] {
			out.InterfaceInstances = append(out.InterfaceInstances, row)
			used[row.Interface] = true
		}
	}
	for _, row := range tables.Interfaces {
		if used[row.Name] {
			out.Interfaces = append(out.Interfaces, row)
		}
	}
	for _, row := range tables.Modports {
		if used[row.Interface] {
			out.Modports = append(out.Modports, row)
		}
	}

	return out
}

// FilterDeltaByModules returns a new Delta containing only rows for the specified modules.
func FilterDeltaByModules(delta Delta, modules map[string]bool) Delta {
	if len(modules) == 0 {
		return Delta{
			Added:   emptyTables(),
			Removed: emptyTables(),
		}
	}
	return Delta{
		Added:   FilterTablesByModules(delta.Added, modules),
		Removed: FilterTablesByModules(delta.Removed, modules),
	}
}
