// Package graph holds the partitioning graph of a grid: one node per cell,
// with well cells merged into a single node that a partitioner cannot split.
package graph

import (
	"fmt"
	"sort"
)

// Node is either a single cell or a merged well.
// ID is the smallest cell id of the node, so it does not depend on merge order.
type Node struct {
	ID     int
	Weight float64
	Cells  []int // sorted, len >= 1
}

// Edge joins two nodes, From < To
type Edge struct {
	From, To int
	Weight   float64
}

// Well is a registered set of cells and the node they were merged into
type Well struct {
	ID    int
	Cells []int
}

// Graph is a union-find arena indexed by cell id. Entries of weight, cells
// and adj are only meaningful at representatives (parent[c] == c).
type Graph struct {
	parent []int
	weight []float64
	cells  [][]int
	adj    []map[int]float64 // representative -> representative -> summed weight

	wells  [][]int
	inWell []int // cell -> index into wells, -1 if none

	size   int
	sealed bool
}

// NewGraph creates a graph with one node per cell of the connectivity
func NewGraph(conn *Connectivity) (*Graph, error) {
	if conn == nil {
		conn = &Connectivity{}
	}
	if err := conn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connectivity: %w", err)
	}

	K := conn.NumCells
	g := &Graph{
		parent: make([]int, K),
		weight: make([]float64, K),
		cells:  make([][]int, K),
		adj:    make([]map[int]float64, K),
		inWell: make([]int, K),
		size:   K,
	}
	for c := 0; c < K; c++ {
		g.parent[c] = c
		g.weight[c] = conn.cellWeight(c)
		g.cells[c] = []int{c}
		g.adj[c] = make(map[int]float64)
		g.inWell[c] = -1
	}

	// Each face is listed from both sides, count it once from the lower id
	for c, faces := range conn.EToE {
		for f, n := range faces {
			if isBoundary(c, n) || n < c {
				continue
			}
			w := conn.faceWeight(c, f)
			g.adj[c][n] += w
			g.adj[n][c] += w
		}
	}

	return g, nil
}

// find returns the representative of cell c, halving paths on the way
func (g *Graph) find(c int) int {
	for g.parent[c] != c {
		g.parent[c] = g.parent[g.parent[c]]
		c = g.parent[c]
	}
	return c
}

// AddWell merges every node holding one of the cells into a single node.
// Wells must be disjoint; a cell already in a registered well is rejected.
func (g *Graph) AddWell(cells []int) error {
	if g.sealed {
		return ErrSealed
	}
	if len(cells) == 0 {
		return &InvalidWellError{Cell: -1, Reason: "empty well"}
	}

	well := uniqueSorted(cells)
	for _, c := range well {
		if c < 0 || c >= len(g.parent) {
			return &InvalidWellError{Cell: c, Reason: "no such cell in graph"}
		}
		if w := g.inWell[c]; w >= 0 {
			return &InvalidWellError{Cell: c,
				Reason: fmt.Sprintf("overlaps well %d", g.find(g.wells[w][0]))}
		}
	}

	roots := make([]int, 0, len(well))
	seen := make(map[int]bool)
	for _, c := range well {
		r := g.find(c)
		if !seen[r] {
			seen[r] = true
			roots = append(roots, r)
		}
	}
	sort.Ints(roots)

	// Representatives are minimal within their sets, so roots[0] is the new minimum
	rep := roots[0]
	for _, r := range roots[1:] {
		g.union(rep, r)
	}
	sort.Ints(g.cells[rep])
	g.size -= len(roots) - 1

	idx := len(g.wells)
	g.wells = append(g.wells, well)
	for _, c := range well {
		g.inWell[c] = idx
	}
	return nil
}

// union folds representative r into representative rep, relabelling r's edges
func (g *Graph) union(rep, r int) {
	g.weight[rep] += g.weight[r]
	g.cells[rep] = append(g.cells[rep], g.cells[r]...)

	for n, w := range g.adj[r] {
		delete(g.adj[n], r)
		if n == rep {
			continue // internal to the merged node
		}
		g.adj[rep][n] += w
		g.adj[n][rep] += w
	}

	g.parent[r] = rep
	g.weight[r] = 0
	g.cells[r] = nil
	g.adj[r] = nil
}

// Size returns the number of nodes
func (g *Graph) Size() int {
	return g.size
}

// NumCells returns the number of grid cells the graph was built from
func (g *Graph) NumCells() int {
	return len(g.parent)
}

// NodeOf returns the id of the node containing cell
func (g *Graph) NodeOf(cell int) (int, error) {
	if cell < 0 || cell >= len(g.parent) {
		return -1, fmt.Errorf("cell %d: %w", cell, ErrUnknownCell)
	}
	return g.find(cell), nil
}

// Node returns the node with the given id
func (g *Graph) Node(id int) (Node, bool) {
	if id < 0 || id >= len(g.parent) || g.parent[id] != id {
		return Node{}, false
	}
	return g.node(id), true
}

func (g *Graph) node(id int) Node {
	return Node{
		ID:     id,
		Weight: g.weight[id],
		Cells:  append([]int(nil), g.cells[id]...),
	}
}

// Nodes returns all nodes ordered by id
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, g.size)
	for c := range g.parent {
		if g.parent[c] == c {
			nodes = append(nodes, g.node(c))
		}
	}
	return nodes
}

// NodeIDs returns the ids of all nodes in ascending order
func (g *Graph) NodeIDs() []int {
	ids := make([]int, 0, g.size)
	for c := range g.parent {
		if g.parent[c] == c {
			ids = append(ids, c)
		}
	}
	return ids
}

// Edges returns every edge once, ordered by (From, To)
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for a := range g.parent {
		if g.parent[a] != a {
			continue
		}
		for b, w := range g.adj[a] {
			if a < b {
				edges = append(edges, Edge{From: a, To: b, Weight: w})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// EdgeWeight returns the weight between two nodes, 0 when they are not adjacent
func (g *Graph) EdgeWeight(a, b int) float64 {
	if _, ok := g.Node(a); !ok {
		return 0
	}
	return g.adj[a][b]
}

// Neighbors returns the adjacent node ids of node id in ascending order
func (g *Graph) Neighbors(id int) []int {
	if _, ok := g.Node(id); !ok {
		return nil
	}
	nbrs := make([]int, 0, len(g.adj[id]))
	for n := range g.adj[id] {
		nbrs = append(nbrs, n)
	}
	sort.Ints(nbrs)
	return nbrs
}

// Wells returns the registered wells in registration order
func (g *Graph) Wells() []Well {
	wells := make([]Well, len(g.wells))
	for i, cells := range g.wells {
		wells[i] = Well{
			ID:    g.find(cells[0]),
			Cells: append([]int(nil), cells...),
		}
	}
	return wells
}

// IsWellNode reports whether node id holds the cells of a registered well
func (g *Graph) IsWellNode(id int) bool {
	if _, ok := g.Node(id); !ok {
		return false
	}
	return g.inWell[id] >= 0
}

// TotalWeight returns the summed weight of all nodes
func (g *Graph) TotalWeight() float64 {
	var total float64
	for c := range g.parent {
		if g.parent[c] == c {
			total += g.weight[c]
		}
	}
	return total
}

// Seal marks the graph as consumed by a partitioner; later wells are rejected
func (g *Graph) Seal() {
	g.sealed = true
}

func (g *Graph) Sealed() bool {
	return g.sealed
}

func uniqueSorted(s []int) []int {
	out := append([]int(nil), s...)
	sort.Ints(out)
	j := 0
	for i, v := range out {
		if i == 0 || v != out[j-1] {
			out[j] = v
			j++
		}
	}
	return out[:j]
}
