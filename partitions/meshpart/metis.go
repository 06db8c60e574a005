package meshpart

import (
	"fmt"

	"github.com/notargets/gocfd/DG3D/mesh"
	"go.uber.org/zap"

	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/partitions"
)

// MetisPartitioner partitions the mesh a graph was loaded from with METIS and
// moves each graph node to the rank holding most of its weight
type MetisPartitioner struct {
	Mesh *mesh.Mesh

	ImbalanceFactor float64 // Allowed load imbalance, 0.05 = 5%
	Objective       string  // "cut" or "vol"

	Logger *zap.Logger
}

// Partition implements partitions.Partitioner
func (mp *MetisPartitioner) Partition(g *graph.Graph, numRanks int) (partitions.Assignment, error) {
	if numRanks < 1 {
		return nil, fmt.Errorf("partition into %d ranks", numRanks)
	}
	if mp.Mesh == nil || mp.Mesh.NumElements != g.NumCells() {
		return nil, fmt.Errorf("mesh does not match graph of %d cells", g.NumCells())
	}
	g.Seal()

	cellRank := make([]int, g.NumCells())
	if numRanks > 1 {
		config := &mesh.PartitionConfig{
			NumPartitions:    int32(numRanks),
			ImbalanceFactor:  float32(1.0 + mp.ImbalanceFactor),
			UseEdgeWeights:   true,
			UseVertexWeights: true,
			Objective:        mp.objective(),
		}
		if err := mesh.NewMeshPartitioner(mp.Mesh, config).Partition(); err != nil {
			return nil, fmt.Errorf("metis partitioning failed: %w", err)
		}
		copy(cellRank, mp.Mesh.EToP)
	}

	a, err := MajorityAssignment(g, cellRank, numRanks)
	if err != nil {
		return nil, err
	}
	if mp.Logger != nil {
		mp.Logger.Info("mesh partitioned with metis",
			zap.Int("elements", mp.Mesh.NumElements),
			zap.Int("nodes", g.Size()),
			zap.Int("ranks", numRanks))
	}
	return a, nil
}

func (mp *MetisPartitioner) objective() string {
	if mp.Objective == "" {
		return "vol"
	}
	return mp.Objective
}

// MajorityAssignment projects a per-cell rank onto the nodes of g. Every node
// goes to the rank holding most of its cells, ties to the lower rank.
func MajorityAssignment(g *graph.Graph, cellRank []int, numRanks int) (partitions.Assignment, error) {
	if len(cellRank) != g.NumCells() {
		return nil, fmt.Errorf("%d cell ranks for %d cells", len(cellRank), g.NumCells())
	}
	a := make(partitions.Assignment, g.Size())
	for _, n := range g.Nodes() {
		votes := make([]int, numRanks)
		for _, c := range n.Cells {
			r := cellRank[c]
			if r < 0 || r >= numRanks {
				return nil, fmt.Errorf("cell %d: rank %d outside [0,%d)", c, r, numRanks)
			}
			votes[r]++
		}
		best := 0
		for r := 1; r < numRanks; r++ {
			if votes[r] > votes[best] {
				best = r
			}
		}
		a[n.ID] = best
	}
	if err := a.Validate(g, numRanks); err != nil {
		return nil, err
	}
	return a, nil
}
