package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Weighted returns a gonum view of the current nodes and edges.
// Node ids of the view are the node ids of g.
func (g *Graph) Weighted() *simple.WeightedUndirectedGraph {
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for _, id := range g.NodeIDs() {
		wg.AddNode(simple.Node(int64(id)))
	}
	for _, e := range g.Edges() {
		wg.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(int64(e.From)),
			T: simple.Node(int64(e.To)),
			W: e.Weight,
		})
	}
	return wg
}

// Components returns the connected components of the graph as sorted node id
// lists, ordered by their smallest id
func (g *Graph) Components() [][]int {
	cc := topo.ConnectedComponents(g.Weighted())
	comps := make([][]int, len(cc))
	for i, nodes := range cc {
		ids := make([]int, len(nodes))
		for j, n := range nodes {
			ids[j] = int(n.ID())
		}
		sort.Ints(ids)
		comps[i] = ids
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}
