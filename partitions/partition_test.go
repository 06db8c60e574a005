package partitions

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/metrics"
	"github.com/notargets/wellpart/transfer"
)

func wellGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.NewGraph(graph.Cartesian(3, 3, 2))
	require.NoError(t, err)
	for _, w := range [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9, 13, 17}} {
		require.NoError(t, g.AddWell(w))
	}
	return g
}

func chainGraph(t *testing.T, n int) *graph.Graph {
	t.Helper()
	g, err := graph.NewGraph(graph.Cartesian(n, 1, 1))
	require.NoError(t, err)
	return g
}

// scenarioAssignment places the four wells on four different ranks
func scenarioAssignment() Assignment {
	return Assignment{0: 0, 3: 1, 6: 2, 9: 3, 10: 0, 11: 0, 12: 1, 14: 3, 15: 2, 16: 2}
}

func TestPartitionBuilder_AllStrategies(t *testing.T) {
	for _, strategy := range []PartitionStrategy{BlockPartition, RoundRobin, GraphPartition} {
		for numRanks := 1; numRanks <= 6; numRanks++ {
			t.Run(fmt.Sprintf("%s/%d", strategy, numRanks), func(t *testing.T) {
				g := wellGraph(t)
				a, err := NewPartitionBuilder(strategy, nil).Partition(g, numRanks)
				require.NoError(t, err)
				assert.True(t, g.Sealed(), "Partition must seal the graph")
				require.NoError(t, a.Validate(g, numRanks))

				layout, err := NewLayout(g, a, numRanks)
				require.NoError(t, err)
				for _, w := range g.Wells() {
					for _, c := range w.Cells {
						if layout.RankOf(c) != layout.RankOf(w.Cells[0]) {
							t.Errorf("Well %d split: cell %d on %d, cell %d on %d", w.ID,
								w.Cells[0], layout.RankOf(w.Cells[0]), c, layout.RankOf(c))
						}
					}
				}
				assert.ErrorIs(t, g.AddWell([]int{10, 11}), graph.ErrSealed)
			})
		}
	}
}

func TestPartitionBuilder_Block(t *testing.T) {
	g := wellGraph(t)
	a, err := NewPartitionBuilder(BlockPartition, nil).Partition(g, 2)
	require.NoError(t, err)

	// Node weights 3,3,3,3,1,1,1,1,1,1 in id order split 9/9
	expected := Assignment{0: 0, 3: 0, 6: 0, 9: 1, 10: 1, 11: 1, 12: 1, 14: 1, 15: 1, 16: 1}
	assert.Equal(t, expected, a)

	layout, err := NewLayout(g, a, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 9}, layout.Weights())
	assert.InDelta(t, 1.0, layout.Statistics().Imbalance, 1e-12)
}

func TestPartitionBuilder_RoundRobin(t *testing.T) {
	g := wellGraph(t)
	a, err := NewPartitionBuilder(RoundRobin, nil).Partition(g, 3)
	require.NoError(t, err)
	for i, id := range g.NodeIDs() {
		if a[id] != i%3 {
			t.Errorf("Node %d: expected rank %d, got %d", id, i%3, a[id])
		}
	}
}

func TestPartitionBuilder_SpectralChain(t *testing.T) {
	tests := []struct {
		numRanks int
		expected []int // rank of cell i
	}{
		{2, []int{0, 0, 0, 0, 1, 1, 1, 1}},
		{4, []int{0, 0, 1, 1, 2, 2, 3, 3}},
	}
	for _, tt := range tests {
		g := chainGraph(t, 8)
		a, err := NewPartitionBuilder(GraphPartition, nil).Partition(g, tt.numRanks)
		require.NoError(t, err)
		for c, want := range tt.expected {
			if a[c] != want {
				t.Errorf("%d ranks: cell %d expected on %d, got %d", tt.numRanks, c, want, a[c])
			}
		}
	}
}

func TestPartitionBuilder_SpectralComponents(t *testing.T) {
	// Two interleaved chains, 0-2-4-6 and 1-3-5-7, with no face between them
	conn := &graph.Connectivity{
		NumCells: 8,
		EToE: [][]int{
			{-1, 2}, {-1, 3}, {0, 4}, {1, 5},
			{2, 6}, {3, 7}, {4, -1}, {5, -1},
		},
	}
	g, err := graph.NewGraph(conn)
	require.NoError(t, err)
	require.Len(t, g.Components(), 2)

	a, err := NewPartitionBuilder(GraphPartition, nil).Partition(g, 2)
	require.NoError(t, err)
	for c := 0; c < 8; c++ {
		if a[c] != c%2 {
			t.Errorf("Cell %d: expected rank %d, got %d", c, c%2, a[c])
		}
	}

	a, err = NewPartitionBuilder(GraphPartition, nil).Partition(g, 4)
	require.NoError(t, err)
	for c, want := range []int{0, 2, 0, 2, 1, 3, 1, 3} {
		if a[c] != want {
			t.Errorf("4 ranks: cell %d expected on %d, got %d", c, want, a[c])
		}
	}
}

func TestPartitionBuilder_SpectralFallback(t *testing.T) {
	g := chainGraph(t, 8)
	pb := NewPartitionBuilder(GraphPartition, nil)
	pb.MaxSpectralNodes = 4
	a, err := pb.Partition(g, 3)
	require.NoError(t, err)

	block, err := NewPartitionBuilder(BlockPartition, nil).Partition(chainGraph(t, 8), 3)
	require.NoError(t, err)
	assert.Equal(t, block, a)
	assert.Equal(t, GraphPartition, pb.Strategy, "fallback must restore the strategy")
}

func TestPartitionBuilder_Metrics(t *testing.T) {
	m := metrics.NewCollector("test")
	pb := NewPartitionBuilder(BlockPartition, nil)
	pb.Metrics = m
	_, err := pb.Partition(wellGraph(t), 2)
	require.NoError(t, err)
	assert.Equal(t, 9.0, testutil.ToFloat64(m.RankWeight.WithLabelValues("1")))
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PartitionImbalance), 1e-12)
}

func TestPartitionBuilder_InvalidRanks(t *testing.T) {
	_, err := NewPartitionBuilder(BlockPartition, nil).Partition(wellGraph(t), 0)
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]PartitionStrategy{
		"": BlockPartition, "Block": BlockPartition, "round-robin": RoundRobin, "spectral": GraphPartition,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseStrategy("metis")
	assert.Error(t, err)
}

func TestLayout_Scenario(t *testing.T) {
	g := wellGraph(t)
	layout, err := NewLayout(g, scenarioAssignment(), 4)
	require.NoError(t, err)

	expected := [][]int{
		{0, 1, 2, 10, 11},
		{3, 4, 5, 12},
		{6, 7, 8, 15, 16},
		{9, 13, 14, 17},
	}
	for r, cells := range expected {
		assert.Equal(t, cells, layout.Partitions[r].Cells, "rank %d", r)
		assert.Equal(t, len(cells), layout.Partitions[r].NumCells)
	}
	assert.Equal(t, 3, layout.RankOf(13))
	assert.Equal(t, -1, layout.RankOf(18))

	stats := layout.Statistics()
	assert.Equal(t, 4.0, stats.MinWeight)
	assert.Equal(t, 5.0, stats.MaxWeight)
	assert.InDelta(t, 5.0/4.5, stats.Imbalance, 1e-12)
	assert.Equal(t, 0, stats.EmptyRanks)
}

func TestLayout_ValidateDetectsCorruption(t *testing.T) {
	layout, err := NewLayout(wellGraph(t), scenarioAssignment(), 4)
	require.NoError(t, err)
	layout.Partitions[1].Cells = append(layout.Partitions[1].Cells, 0)
	layout.Partitions[1].NumCells++
	assert.Error(t, layout.Validate())
}

func TestAssignment_Validate(t *testing.T) {
	g := wellGraph(t)
	require.NoError(t, scenarioAssignment().Validate(g, 4))

	missing := scenarioAssignment()
	delete(missing, 12)
	err := missing.Validate(g, 4)
	require.ErrorIs(t, err, ErrInconsistentAssignment)
	var iae *InconsistentAssignmentError
	require.True(t, errors.As(err, &iae))
	assert.Equal(t, 12, iae.Node)
	assert.Equal(t, -1, iae.Rank)

	outOfRange := scenarioAssignment()
	outOfRange[9] = 4
	assert.ErrorIs(t, outOfRange.Validate(g, 4), ErrInconsistentAssignment)

	// Cell 13 belongs to well node 9
	unknown := scenarioAssignment()
	unknown[13] = 3
	err = unknown.Validate(g, 4)
	assert.ErrorIs(t, err, transfer.ErrUnresolvedNode)

	_, err = NewLayout(g, missing, 4)
	assert.ErrorIs(t, err, ErrInconsistentAssignment)
}

func TestAssignment_Flatten(t *testing.T) {
	a := scenarioAssignment()
	data := a.Flatten()
	assert.Equal(t, []int{0, 0, 3, 1, 6, 2, 9, 3}, data[:8])

	back, err := UnflattenAssignment(data)
	require.NoError(t, err)
	assert.Equal(t, a, back)

	_, err = UnflattenAssignment([]int{1, 2, 3})
	assert.Error(t, err)
}

func TestRawLists(t *testing.T) {
	a := scenarioAssignment()

	exports, imports := RawLists(a, 0, 0)
	assert.Empty(t, imports)
	assert.Equal(t, []transfer.ExportEntry{
		{Cell: 3, Rank: 1, Attr: transfer.Owner},
		{Cell: 6, Rank: 2, Attr: transfer.Owner},
		{Cell: 9, Rank: 3, Attr: transfer.Owner},
		{Cell: 12, Rank: 1, Attr: transfer.Owner},
		{Cell: 14, Rank: 3, Attr: transfer.Owner},
		{Cell: 15, Rank: 2, Attr: transfer.Owner},
		{Cell: 16, Rank: 2, Attr: transfer.Owner},
	}, exports)

	exports, imports = RawLists(a, 0, 2)
	assert.Empty(t, exports)
	assert.Equal(t, []transfer.ImportEntry{
		{Cell: 6, Rank: 2, Attr: transfer.Owner, Tag: transfer.NoTag},
		{Cell: 15, Rank: 2, Attr: transfer.Owner, Tag: transfer.NoTag},
		{Cell: 16, Rank: 2, Attr: transfer.Owner, Tag: transfer.NoTag},
	}, imports)

	// With root 1, rank 0 imports what stays on 0
	_, imports = RawLists(a, 1, 0)
	assert.Len(t, imports, 3)
}
