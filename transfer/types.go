// Package transfer turns a partitioner's incomplete export and import lists
// into complete per-rank transfer schedules, expanding merged wells back into
// their cells and adding the entries for cells that stay on the root rank.
package transfer

import (
	"fmt"
	"sort"
)

// Attribute tags the copy of a cell a rank receives
type Attribute uint8

const (
	Owner   Attribute = iota + 1 // Authoritative copy
	Overlap                      // Ghost copy in the overlap layer
	Copy                         // Read-only copy
)

func (a Attribute) String() string {
	switch a {
	case Owner:
		return "owner"
	case Overlap:
		return "overlap"
	case Copy:
		return "copy"
	default:
		return fmt.Sprintf("attribute(%d)", uint8(a))
	}
}

// NoTag is the auxiliary tag of every import entry produced here
const NoTag = -1

// ExportEntry schedules Cell, owned by the exporting rank, to be sent to Rank
type ExportEntry struct {
	Cell int
	Rank int
	Attr Attribute
}

// ImportEntry schedules Cell to be received by the rank holding the list.
// Rank is the rank the cell is assigned to.
type ImportEntry struct {
	Cell int
	Rank int
	Attr Attribute
	Tag  int
}

func (e ExportEntry) String() string {
	return fmt.Sprintf("(%d,%d,%s)", e.Cell, e.Rank, e.Attr)
}

func (e ImportEntry) String() string {
	return fmt.Sprintf("(%d,%d,%s,%d)", e.Cell, e.Rank, e.Attr, e.Tag)
}

// SortExports orders entries by (Cell, Rank, Attr)
func SortExports(list []ExportEntry) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.Attr < b.Attr
	})
}

// SortImports orders entries by (Cell, Rank, Attr, Tag)
func SortImports(list []ImportEntry) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if a.Attr != b.Attr {
			return a.Attr < b.Attr
		}
		return a.Tag < b.Tag
	})
}

// OwnedCells returns the cells of the Owner entries of an import list, sorted
func OwnedCells(imports []ImportEntry) []int {
	cells := make([]int, 0, len(imports))
	for _, e := range imports {
		if e.Attr == Owner {
			cells = append(cells, e.Cell)
		}
	}
	sort.Ints(cells)
	return cells
}
