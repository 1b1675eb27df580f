package workbook

import (
	"fmt"
	"slices"
	"strings"
)

// FieldGraph holds the references between calculated fields. An edge runs
// from a field to every calculated field whose formula references it.
// Columns and parameters are not part of the graph.
type FieldGraph struct {
	ids     []string            // registration order
	edges   map[string][]string // field -> dependents
	parents map[string][]string // field -> dependencies
}

// NewFieldGraph creates an empty graph.
func NewFieldGraph() *FieldGraph {
	return &FieldGraph{
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// newFieldGraph builds the graph of fields from their resolved references.
func newFieldGraph(fields []*CalculatedField) *FieldGraph {
	g := NewFieldGraph()
	for _, cf := range fields {
		g.AddField(cf.ID)
	}
	for _, cf := range fields {
		for _, ref := range cf.References {
			if g.Has(ref) {
				_ = g.AddDependency(ref, cf.ID)
			}
		}
	}
	return g
}

// AddField registers a field. Registering a field twice is a no-op.
func (g *FieldGraph) AddField(id string) {
	if g.Has(id) {
		return
	}
	g.ids = append(g.ids, id)
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddDependency records that dependent references dependency. A field may
// reference itself; Cycle reports it.
func (g *FieldGraph) AddDependency(dependency, dependent string) error {
	if !g.Has(dependency) {
		return fmt.Errorf("field %q does not exist", dependency)
	}
	if !g.Has(dependent) {
		return fmt.Errorf("field %q does not exist", dependent)
	}
	if !slices.Contains(g.edges[dependency], dependent) {
		g.edges[dependency] = append(g.edges[dependency], dependent)
		g.parents[dependent] = append(g.parents[dependent], dependency)
	}
	return nil
}

// Has reports whether id is registered.
func (g *FieldGraph) Has(id string) bool {
	_, ok := g.edges[id]
	return ok
}

// Len returns the number of fields.
func (g *FieldGraph) Len() int {
	return len(g.ids)
}

// Fields returns every field in registration order.
func (g *FieldGraph) Fields() []string {
	return slices.Clone(g.ids)
}

// Dependencies returns the fields id references directly.
func (g *FieldGraph) Dependencies(id string) []string {
	return slices.Clone(g.parents[id])
}

// Dependents returns the fields referencing id directly.
func (g *FieldGraph) Dependents(id string) []string {
	return slices.Clone(g.edges[id])
}

// Cycle returns the first reference cycle found, walking fields in
// registration order. The path starts and ends with the same field. It
// returns nil when the graph is acyclic.
func (g *FieldGraph) Cycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.ids))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = active
		stack = append(stack, id)
		for _, child := range g.edges[id] {
			switch state[child] {
			case active:
				start := slices.Index(stack, child)
				return append(slices.Clone(stack[start:]), child)
			case unvisited:
				if cycle := visit(child); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range g.ids {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// CycleError reports calculated fields that reference each other.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular reference: " + strings.Join(e.Path, " -> ")
}

// Order returns the fields with dependencies before dependents. Fields
// with no ordering constraint keep registration order.
func (g *FieldGraph) Order() ([]string, error) {
	if cycle := g.Cycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	visited := make(map[string]bool, len(g.ids))
	result := make([]string, 0, len(g.ids))
	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parent := range g.parents[id] {
			visit(parent)
		}
		result = append(result, id)
	}
	for _, id := range g.ids {
		visit(id)
	}
	return result, nil
}

// Levels groups fields by reference depth. Level 0 holds fields that
// reference no other calculated field.
func (g *FieldGraph) Levels() ([][]string, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(order))
	var levels [][]string
	for _, id := range order {
		level := 0
		for _, parent := range g.parents[id] {
			level = max(level, depth[parent]+1)
		}
		depth[id] = level
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], id)
	}
	return levels, nil
}

// Downstream returns ids and every field that references one of them,
// directly or through other fields, in registration order.
func (g *FieldGraph) Downstream(ids ...string) []string {
	marked := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		if marked[id] {
			return
		}
		marked[id] = true
		for _, child := range g.edges[id] {
			mark(child)
		}
	}
	for _, id := range ids {
		if g.Has(id) {
			mark(id)
		}
	}
	return g.filter(marked)
}

// Upstream returns every field id references, directly or through other
// fields, in registration order.
func (g *FieldGraph) Upstream(id string) []string {
	marked := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		for _, parent := range g.parents[id] {
			if !marked[parent] {
				marked[parent] = true
				mark(parent)
			}
		}
	}
	mark(id)
	return g.filter(marked)
}

// Subgraph returns the graph restricted to ids.
func (g *FieldGraph) Subgraph(ids []string) *FieldGraph {
	sub := NewFieldGraph()
	for _, id := range g.ids {
		if slices.Contains(ids, id) {
			sub.AddField(id)
		}
	}
	for _, id := range sub.ids {
		for _, child := range g.edges[id] {
			if sub.Has(child) {
				_ = sub.AddDependency(id, child)
			}
		}
	}
	return sub
}

func (g *FieldGraph) filter(marked map[string]bool) []string {
	var out []string
	for _, id := range g.ids {
		if marked[id] {
			out = append(out, id)
		}
	}
	return out
}
