// Package meshpart connects unstructured meshes read by gocfd to the well
// graph: cell adjacency from shared vertices, and METIS partitioning of the
// mesh projected back onto graph nodes.
package meshpart

import (
	"fmt"
	"sort"

	"github.com/notargets/gocfd/DG3D/mesh"
	"github.com/notargets/gocfd/DG3D/mesh/readers"

	"github.com/notargets/wellpart/graph"
)

// DefaultMinSharedVertices makes two 3D cells neighbours when they share a
// triangular face or more
const DefaultMinSharedVertices = 3

// LoadConnectivity reads a mesh file (.neu, .msh or .su2) and derives its
// cell connectivity
func LoadConnectivity(meshfile string) (*graph.Connectivity, *mesh.Mesh, error) {
	msh, err := readers.ReadMeshFile(meshfile)
	if err != nil {
		return nil, nil, fmt.Errorf("read mesh %s: %w", meshfile, err)
	}
	conn, err := FromElements(msh.EtoV, DefaultMinSharedVertices)
	if err != nil {
		return nil, nil, fmt.Errorf("mesh %s: %w", meshfile, err)
	}
	return conn, msh, nil
}

// FromElements builds connectivity from element vertex lists. Two elements
// are adjacent when they share at least minShared vertices; the face weight
// is the number of shared vertices.
func FromElements(etov [][]int, minShared int) (*graph.Connectivity, error) {
	if minShared < 1 {
		return nil, fmt.Errorf("minShared must be positive, got %d", minShared)
	}
	K := len(etov)

	// Vertex to element index
	vToE := make(map[int][]int)
	for e, verts := range etov {
		for _, v := range uniqueVerts(verts) {
			if v < 0 {
				return nil, fmt.Errorf("element %d: negative vertex %d", e, v)
			}
			vToE[v] = append(vToE[v], e)
		}
	}

	conn := &graph.Connectivity{
		NumCells:    K,
		EToE:        make([][]int, K),
		FaceWeights: make([][]float64, K),
	}
	for e, verts := range etov {
		shared := make(map[int]int)
		for _, v := range uniqueVerts(verts) {
			for _, n := range vToE[v] {
				if n != e {
					shared[n]++
				}
			}
		}
		nbrs := make([]int, 0, len(shared))
		for n, count := range shared {
			if count >= minShared {
				nbrs = append(nbrs, n)
			}
		}
		sort.Ints(nbrs)
		conn.EToE[e] = nbrs
		conn.FaceWeights[e] = make([]float64, len(nbrs))
		for f, n := range nbrs {
			conn.FaceWeights[e][f] = float64(shared[n])
		}
	}
	return conn, nil
}

func uniqueVerts(verts []int) []int {
	out := append([]int(nil), verts...)
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
