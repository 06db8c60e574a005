package partitions

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/wellpart/graph"
)

// spectralPartition splits nodes over numRanks by recursive bisection along
// the Fiedler vector of the weighted graph Laplacian. Connected components are
// laid out one after another, ordered by their smallest node id.
func spectralPartition(g *graph.Graph, nodes []graph.Node, numRanks int) []int {
	sp := &spectral{
		g:      g,
		weight: make(map[int]float64, len(nodes)),
		comp:   make(map[int]int, len(nodes)),
		rank:   make(map[int]int, len(nodes)),
	}
	index := make(map[int]int, len(nodes))
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
		ids[i] = n.ID
		sp.weight[n.ID] = n.Weight
	}
	for ci, members := range g.Components() {
		for _, id := range members {
			sp.comp[id] = ci
		}
	}

	sp.bisect(ids, 0, numRanks)

	nToP := make([]int, len(nodes))
	for id, r := range sp.rank {
		nToP[index[id]] = r
	}
	return nToP
}

type spectral struct {
	g      *graph.Graph
	weight map[int]float64
	comp   map[int]int // node id -> connected component
	rank   map[int]int
}

// bisect assigns ranks [lo, lo+k) to ids
func (sp *spectral) bisect(ids []int, lo, k int) {
	if len(ids) == 0 {
		return
	}
	if k == 1 || len(ids) == 1 {
		for _, id := range ids {
			sp.rank[id] = lo
		}
		return
	}

	kLeft := k / 2
	order := sp.order(ids)

	var total float64
	for _, id := range ids {
		total += sp.weight[id]
	}
	target := total * float64(kLeft) / float64(k)

	// Cut where the running weight crosses the left share; both halves keep
	// at least one node
	cut := 0
	var cum float64
	for cut < len(order)-1 {
		w := sp.weight[order[cut]]
		if cut > 0 && cum+w/2 > target {
			break
		}
		cum += w
		cut++
	}

	left := append([]int(nil), order[:cut]...)
	right := append([]int(nil), order[cut:]...)
	sort.Ints(left)
	sort.Ints(right)
	sp.bisect(left, lo, kLeft)
	sp.bisect(right, lo+kLeft, k-kLeft)
}

// order lays ids out component by component, each in Fiedler order. The
// Laplacian of a disconnected set has a repeated zero eigenvalue, so its
// second eigenvector only separates components.
func (sp *spectral) order(ids []int) []int {
	groups := make(map[int][]int)
	var comps []int
	for _, id := range ids {
		ci := sp.comp[id]
		if _, ok := groups[ci]; !ok {
			comps = append(comps, ci)
		}
		groups[ci] = append(groups[ci], id)
	}
	if len(comps) == 1 {
		return fiedlerOrder(sp.g, ids)
	}
	sort.Ints(comps)
	order := make([]int, 0, len(ids))
	for _, ci := range comps {
		order = append(order, fiedlerOrder(sp.g, groups[ci])...)
	}
	return order
}

// fiedlerOrder returns ids ordered by their entry in the eigenvector of the
// second smallest eigenvalue of the Laplacian restricted to ids. When the
// factorization fails ids are returned unchanged.
func fiedlerOrder(g *graph.Graph, ids []int) []int {
	n := len(ids)
	if n < 3 {
		return ids
	}
	local := make(map[int]int, n)
	for i, id := range ids {
		local[id] = i
	}

	lap := mat.NewSymDense(n, nil)
	for i, id := range ids {
		for _, nb := range g.Neighbors(id) {
			j, ok := local[nb]
			if !ok {
				continue
			}
			w := g.EdgeWeight(id, nb)
			lap.SetSym(i, i, lap.At(i, i)+w)
			if i < j {
				lap.SetSym(i, j, -w)
			}
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(lap, true); !ok {
		return ids
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	fiedler := make([]float64, n)
	for i := range fiedler {
		fiedler[i] = vecs.At(i, 1)
	}
	// Fix the sign so the lowest id starts on the left
	if fiedler[0] > 0 {
		for i := range fiedler {
			fiedler[i] = -fiedler[i]
		}
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return fiedler[perm[a]] < fiedler[perm[b]]
	})
	order := make([]int, n)
	for i, p := range perm {
		order[i] = ids[p]
	}
	return order
}
