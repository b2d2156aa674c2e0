package facts

import (
	"fmt"
	"sort"
	"strings"
)

// DependentsGraph maps a module name to the modules that instantiate it.
type DependentsGraph map[string]map[string]bool

// BuildDependentsGraph inverts the instance relation.
func BuildDependentsGraph(t Tables) DependentsGraph {
	graph := make(DependentsGraph)
	for _, inst := range t.Instances {
		if inst.Target == "" || inst.Target == inst.Module {
			continue
		}
		if graph[inst.Target] == nil {
			graph[inst.Target] = make(map[string]bool)
		}
		graph[inst.Target][inst.Module] = true
	}
	return graph
}

// ImpactReport lists the modules that transitively instantiate Root, one
// level of the hierarchy per entry.
type ImpactReport struct {
	Root   string     `json:"root"`
	Levels [][]string `json:"levels"`
}

// ComputeImpact walks the dependents of root breadth first.
func ComputeImpact(root string, dependents DependentsGraph) ImpactReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, f := range frontier {
			for dep := range dependents[f] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return ImpactReport{Root: root, Levels: levels}
}

// Flatten returns every impacted module, nearest level first.
func (r ImpactReport) Flatten() []string {
	var out []string
	for _, level := range r.Levels {
		out = append(out, level...)
	}
	return out
}

func (r ImpactReport) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", r.Root))
	for i, level := range r.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}

// ChangedModules names the modules whose rows differ in d, sorted. A changed
// interface definition marks every module of next that instantiates it.
func ChangedModules(d Delta, next Tables) []string {
	set := make(map[string]bool)
	ifaces := make(map[string]bool)
	for _, t := range []Tables{d.Added, d.Removed} {
		for _, r := range t.Modules {
			set[r.Name] = true
		}
		for _, r := range t.Ports {
			set[r.Module] = true
		}
		for _, r := range t.Signals {
			set[r.Module] = true
		}
		for _, r := range t.Instances {
			set[r.Module] = true
		}
		for _, r := range t.Bindings {
			set[r.Module] = true
		}
		for _, r := range t.Assigns {
			set[r.Module] = true
		}
		for _, r := range t.Blocks {
			set[r.Module] = true
		}
		for _, r := range t.BlockWrites {
			set[r.Module] = true
		}
		for _, r := range t.InterfaceInstances {
			set[r.Module] = true
		}
		for _, r := range t.Interfaces {
			ifaces[r.Name] = true
		}
		for _, r := range t.Modports {
			ifaces[r.Interface] = true
		}
	}
	for _, r := range next.InterfaceInstances {
		if ifaces[r.Interface] {
			set[r.Module] = true
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
