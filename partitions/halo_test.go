package partitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/transfer"
)

func TestHalo_Chain(t *testing.T) {
	conn := graph.Cartesian(4, 1, 1)
	g, err := graph.NewGraph(conn)
	require.NoError(t, err)
	layout, err := NewLayout(g, Assignment{0: 0, 1: 0, 2: 1, 3: 1}, 2)
	require.NoError(t, err)

	h, err := NewHalo(conn, layout)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, h.SendCells(0, 1))
	assert.Equal(t, []int{2}, h.SendCells(1, 0))
	assert.Empty(t, h.SendCells(0, 0))
	assert.Nil(t, h.SendCells(0, 2))
	assert.Equal(t, 1, h.CutFaces)
	assert.Equal(t, 1.0, h.CutWeight)
	assert.Equal(t, 1, h.GlobalToLocal[1][3])
	assert.Equal(t, []int{2, 3}, h.LocalToGlobal[1])

	assert.Equal(t, []transfer.ExportEntry{
		{Cell: 1, Rank: 1, Attr: transfer.Overlap},
		{Cell: 2, Rank: 0, Attr: transfer.Overlap},
	}, h.Exports())
	assert.Equal(t, []transfer.ImportEntry{
		{Cell: 2, Rank: 0, Attr: transfer.Overlap, Tag: transfer.NoTag},
	}, OverlapImports(0, h.RecvCells(0)))
}

func TestHalo_Scenario(t *testing.T) {
	conn := graph.Cartesian(3, 3, 2)
	g := wellGraph(t)
	layout, err := NewLayout(g, scenarioAssignment(), 4)
	require.NoError(t, err)

	h, err := NewHalo(conn, layout)
	require.NoError(t, err)

	// Every overlap cell touches a cell the receiver owns
	for src := 0; src < 4; src++ {
		for dst := 0; dst < 4; dst++ {
			for _, c := range h.SendCells(src, dst) {
				assert.Equal(t, src, layout.RankOf(c))
				touches := false
				for _, n := range conn.EToE[c] {
					if n != c && layout.RankOf(n) == dst {
						touches = true
					}
				}
				assert.True(t, touches, "cell %d sent from %d to %d has no neighbour there", c, src, dst)
			}
		}
	}

	// Cut faces match the faces between cells on different ranks
	cut := 0
	for c, faces := range conn.EToE {
		for _, n := range faces {
			if c < n && layout.RankOf(c) != layout.RankOf(n) {
				cut++
			}
		}
	}
	assert.Equal(t, cut, h.CutFaces)
}

func TestHalo_Mismatch(t *testing.T) {
	g := wellGraph(t)
	layout, err := NewLayout(g, scenarioAssignment(), 4)
	require.NoError(t, err)
	_, err = NewHalo(graph.Cartesian(2, 2, 1), layout)
	assert.Error(t, err)
}

func TestHalo_VerifyNumbering(t *testing.T) {
	conn := graph.Cartesian(4, 1, 1)
	g, err := graph.NewGraph(conn)
	require.NoError(t, err)
	layout, err := NewLayout(g, Assignment{0: 0, 1: 0, 2: 1, 3: 1}, 2)
	require.NoError(t, err)
	h, err := NewHalo(conn, layout)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, h.CellsPerRank)

	h.LocalToGlobal[1][0], h.LocalToGlobal[1][1] = 3, 2
	assert.Error(t, h.Verify())
	h.LocalToGlobal[1][0], h.LocalToGlobal[1][1] = 2, 3
	require.NoError(t, h.Verify())

	h.CellsPerRank[0] = 3
	assert.Error(t, h.Verify())
}
