package partitions

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/wellpart/graph"
)

// Partition holds the cells one rank owns after partitioning
type Partition struct {
	// Destination rank of this partition
	Rank int

	// Membership
	Nodes    []int // Graph node ids assigned to this rank
	Cells    []int // Global cell ids, wells expanded
	NumCells int

	// Summed cell weight
	Weight float64
}

// Layout manages the complete decomposition of a grid over ranks
type Layout struct {
	// All partitions, indexed by rank
	Partitions []Partition

	// Global sizing information
	TotalCells  int
	TotalWeight float64
	NumRanks    int

	// Cell to rank mapping
	CellToRank []int // Length TotalCells: cell c belongs to rank CellToRank[c]
}

// NewLayout expands an assignment over graph nodes to the cells of g
func NewLayout(g *graph.Graph, a Assignment, numRanks int) (*Layout, error) {
	if err := a.Validate(g, numRanks); err != nil {
		return nil, err
	}

	layout := &Layout{
		Partitions:  make([]Partition, numRanks),
		TotalCells:  g.NumCells(),
		TotalWeight: g.TotalWeight(),
		NumRanks:    numRanks,
		CellToRank:  make([]int, g.NumCells()),
	}
	for r := range layout.Partitions {
		layout.Partitions[r] = Partition{Rank: r}
	}

	for _, n := range g.Nodes() {
		rank := a[n.ID]
		p := &layout.Partitions[rank]
		p.Nodes = append(p.Nodes, n.ID)
		p.Cells = append(p.Cells, n.Cells...)
		p.NumCells += len(n.Cells)
		p.Weight += n.Weight
		for _, c := range n.Cells {
			layout.CellToRank[c] = rank
		}
	}
	for r := range layout.Partitions {
		sort.Ints(layout.Partitions[r].Cells)
	}

	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// RankOf returns the rank owning cell, -1 for unknown cells
func (l *Layout) RankOf(cell int) int {
	if cell < 0 || cell >= len(l.CellToRank) {
		return -1
	}
	return l.CellToRank[cell]
}

// Validate checks that every cell is owned by exactly one partition
func (l *Layout) Validate() error {
	if len(l.Partitions) != l.NumRanks {
		return fmt.Errorf("%d partitions for %d ranks", len(l.Partitions), l.NumRanks)
	}
	seen := make([]bool, l.TotalCells)
	total := 0
	for _, p := range l.Partitions {
		if p.NumCells != len(p.Cells) {
			return fmt.Errorf("partition %d: NumCells %d != len(Cells) %d",
				p.Rank, p.NumCells, len(p.Cells))
		}
		for _, c := range p.Cells {
			if c < 0 || c >= l.TotalCells {
				return fmt.Errorf("partition %d: cell %d out of range", p.Rank, c)
			}
			if seen[c] {
				return fmt.Errorf("cell %d owned by more than one partition", c)
			}
			seen[c] = true
			if l.CellToRank[c] != p.Rank {
				return fmt.Errorf("cell %d: CellToRank %d != partition %d",
					c, l.CellToRank[c], p.Rank)
			}
		}
		total += p.NumCells
	}
	if total != l.TotalCells {
		return fmt.Errorf("partitions hold %d cells, grid has %d", total, l.TotalCells)
	}
	return nil
}

// Weights returns the summed weight of every rank
func (l *Layout) Weights() []float64 {
	w := make([]float64, len(l.Partitions))
	for r, p := range l.Partitions {
		w[r] = p.Weight
	}
	return w
}

// Statistics computes load balance metrics
func (l *Layout) Statistics() Stats {
	stats := Stats{
		NumRanks:  l.NumRanks,
		MinWeight: math.MaxFloat64,
		MaxWeight: 0,
		AvgWeight: l.TotalWeight / float64(l.NumRanks),
	}

	for _, p := range l.Partitions {
		if p.Weight < stats.MinWeight {
			stats.MinWeight = p.Weight
		}
		if p.Weight > stats.MaxWeight {
			stats.MaxWeight = p.Weight
		}
		if p.NumCells == 0 {
			stats.EmptyRanks++
		}
	}

	if stats.AvgWeight > 0 {
		stats.Imbalance = stats.MaxWeight / stats.AvgWeight
	}
	return stats
}

type Stats struct {
	NumRanks   int
	MinWeight  float64
	MaxWeight  float64
	AvgWeight  float64
	Imbalance  float64 // MaxWeight / AvgWeight
	EmptyRanks int
}
