// Package matrix expands a workflow's axis strategy into cells
package matrix

import (
	"fmt"
	"strings"

	"github.com/gantry/gantry/pkg/types"
)

// Pair is one axis assignment within a cell
type Pair struct {
	Axis  string `json:"axis"`
	Value string `json:"value"`
}

// Cell is one concrete combination of axis values, executed as an
// independent pipeline instance. Pairs keep axis declaration order.
type Cell struct {
	Pairs []Pair `json:"pairs"`
}

// Key returns a stable identifier for the cell, usable as a state file
// name component.
func (c Cell) Key() string {
	parts := make([]string, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		parts = append(parts, fmt.Sprintf("%s=%s", p.Axis, p.Value))
	}
	return strings.Join(parts, ",")
}

// Value returns the assignment for an axis, or the empty string when the
// axis is not part of this cell.
func (c Cell) Value(axis string) string {
	for _, p := range c.Pairs {
		if p.Axis == axis {
			return p.Value
		}
	}
	return ""
}

// Map returns the cell's assignments keyed by axis name.
func (c Cell) Map() map[string]string {
	m := make(map[string]string, len(c.Pairs))
	for _, p := range c.Pairs {
		m[p.Axis] = p.Value
	}
	return m
}

// Validate checks that the axes form a well-defined matrix.
func Validate(axes []types.Axis) error {
	seen := make(map[string]bool, len(axes))
	for _, axis := range axes {
		if axis.Name == "" {
			return fmt.Errorf("matrix axis with empty name")
		}
		if seen[axis.Name] {
			return fmt.Errorf("duplicate matrix axis: %s", axis.Name)
		}
		seen[axis.Name] = true

		if len(axis.Values) == 0 {
			return fmt.Errorf("matrix axis %s has no values", axis.Name)
		}
		values := make(map[string]bool, len(axis.Values))
		for _, v := range axis.Values {
			if values[v] {
				return fmt.Errorf("matrix axis %s has duplicate value: %s", axis.Name, v)
			}
			values[v] = true
		}
	}
	return nil
}

// Expand produces the full cross product of the axes as an ordered
// sequence of cells. The first declared axis varies slowest, so the
// sequence is deterministic for a given declaration order. An empty
// axis list yields a single empty cell: a workflow without a matrix
// still runs exactly once.
func Expand(axes []types.Axis) ([]Cell, error) {
	if err := Validate(axes); err != nil {
		return nil, err
	}

	cells := []Cell{{}}
	for _, axis := range axes {
		next := make([]Cell, 0, len(cells)*len(axis.Values))
		for _, cell := range cells {
			for _, value := range axis.Values {
				pairs := make([]Pair, len(cell.Pairs), len(cell.Pairs)+1)
				copy(pairs, cell.Pairs)
				pairs = append(pairs, Pair{Axis: axis.Name, Value: value})
				next = append(next, Cell{Pairs: pairs})
			}
		}
		cells = next
	}
	return cells, nil
}
