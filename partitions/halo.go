package partitions

import (
	"fmt"
	"sort"

	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/transfer"
)

// Halo holds the one-cell overlap layer of a layout: for every pair of ranks
// the owned cells one rank must copy to the other because they share a face
// with a cell the other rank owns
type Halo struct {
	NumRanks int

	// Owned-cell numbering per rank
	CellsPerRank  []int
	GlobalToLocal []map[int]int // [rank][globalCell] → localCell
	LocalToGlobal [][]int       // [rank][localCell] → globalCell

	// Send[src][dst] lists the cells src owns that dst holds as overlap, sorted
	Send [][][]int

	// Faces between cells owned by different ranks, counted once
	CutFaces  int
	CutWeight float64
}

// NewHalo derives the overlap layer of layout from the cell connectivity the
// graph was built from
func NewHalo(conn *graph.Connectivity, layout *Layout) (*Halo, error) {
	if conn.NumCells != layout.TotalCells {
		return nil, fmt.Errorf("connectivity has %d cells, layout %d", conn.NumCells, layout.TotalCells)
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	h := &Halo{NumRanks: layout.NumRanks}
	h.buildRankMappings(layout)
	h.initializeBuffers()

	sends := make([][]map[int]bool, h.NumRanks)
	for src := range sends {
		sends[src] = make([]map[int]bool, h.NumRanks)
	}
	for c, faces := range conn.EToE {
		src := layout.CellToRank[c]
		for f, n := range faces {
			if n == c || n < 0 {
				continue
			}
			dst := layout.CellToRank[n]
			if dst == src {
				continue
			}
			if c < n {
				h.CutFaces++
				if conn.FaceWeights != nil {
					h.CutWeight += conn.FaceWeights[c][f]
				} else {
					h.CutWeight++
				}
			}
			if sends[src][dst] == nil {
				sends[src][dst] = make(map[int]bool)
			}
			sends[src][dst][c] = true
		}
	}

	for src := range sends {
		for dst, set := range sends[src] {
			for c := range set {
				h.Send[src][dst] = append(h.Send[src][dst], c)
			}
			sort.Ints(h.Send[src][dst])
		}
	}

	if err := h.Verify(); err != nil {
		return nil, err
	}
	return h, nil
}

// buildRankMappings creates bidirectional mappings between global and local cell numbering
func (h *Halo) buildRankMappings(layout *Layout) {
	h.CellsPerRank = make([]int, h.NumRanks)
	h.GlobalToLocal = make([]map[int]int, h.NumRanks)
	h.LocalToGlobal = make([][]int, h.NumRanks)
	for r, p := range layout.Partitions {
		h.CellsPerRank[r] = p.NumCells
		h.GlobalToLocal[r] = make(map[int]int, p.NumCells)
		h.LocalToGlobal[r] = append([]int(nil), p.Cells...)
		for local, c := range p.Cells {
			h.GlobalToLocal[r][c] = local
		}
	}
}

func (h *Halo) initializeBuffers() {
	h.Send = make([][][]int, h.NumRanks)
	for src := range h.Send {
		h.Send[src] = make([][]int, h.NumRanks)
	}
}

// SendCells returns the cells src copies to dst
func (h *Halo) SendCells(src, dst int) []int {
	if src < 0 || src >= h.NumRanks || dst < 0 || dst >= h.NumRanks {
		return nil
	}
	return h.Send[src][dst]
}

// RecvCells returns every cell dst holds as overlap, sorted
func (h *Halo) RecvCells(dst int) []int {
	if dst < 0 || dst >= h.NumRanks {
		return nil
	}
	var cells []int
	for src := 0; src < h.NumRanks; src++ {
		cells = append(cells, h.Send[src][dst]...)
	}
	sort.Ints(cells)
	return cells
}

// Exports returns the Overlap export entries of a rank holding every cell
func (h *Halo) Exports() []transfer.ExportEntry {
	var list []transfer.ExportEntry
	for dst := 0; dst < h.NumRanks; dst++ {
		for _, c := range h.RecvCells(dst) {
			list = append(list, transfer.ExportEntry{Cell: c, Rank: dst, Attr: transfer.Overlap})
		}
	}
	transfer.SortExports(list)
	return list
}

// OverlapImports turns the overlap cells of rank into Overlap import entries
func OverlapImports(rank int, cells []int) []transfer.ImportEntry {
	list := make([]transfer.ImportEntry, 0, len(cells))
	for _, c := range cells {
		list = append(list, transfer.ImportEntry{Cell: c, Rank: rank, Attr: transfer.Overlap, Tag: transfer.NoTag})
	}
	return list
}

// Verify checks the owned-cell numbering of every rank and that overlap cells
// are owned by the sender and never by the receiver
func (h *Halo) Verify() error {
	for r := 0; r < h.NumRanks; r++ {
		if len(h.LocalToGlobal[r]) != h.CellsPerRank[r] || len(h.GlobalToLocal[r]) != h.CellsPerRank[r] {
			return fmt.Errorf("rank %d: %d local and %d global ids for %d cells",
				r, len(h.LocalToGlobal[r]), len(h.GlobalToLocal[r]), h.CellsPerRank[r])
		}
		for local, c := range h.LocalToGlobal[r] {
			if h.GlobalToLocal[r][c] != local {
				return fmt.Errorf("rank %d: local cell %d maps to %d, back to %d",
					r, local, c, h.GlobalToLocal[r][c])
			}
		}
	}
	for src := 0; src < h.NumRanks; src++ {
		for dst := 0; dst < h.NumRanks; dst++ {
			if src == dst && len(h.Send[src][dst]) > 0 {
				return fmt.Errorf("rank %d sends %d overlap cells to itself", src, len(h.Send[src][dst]))
			}
			for _, c := range h.Send[src][dst] {
				if _, ok := h.GlobalToLocal[src][c]; !ok {
					return fmt.Errorf("rank %d sends cell %d it does not own", src, c)
				}
				if _, ok := h.GlobalToLocal[dst][c]; ok {
					return fmt.Errorf("rank %d receives overlap cell %d it already owns", dst, c)
				}
			}
		}
	}
	return nil
}
