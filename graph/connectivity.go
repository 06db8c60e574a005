package graph

import (
	"fmt"
)

// Connectivity provides the cell topology needed to build a Graph
type Connectivity struct {
	NumCells int

	// Cell weights, nil means every cell weighs 1
	CellWeights []float64

	// Cell-to-cell connectivity across faces. EToE[c][f] is the neighbour of
	// cell c across face f, c itself or -1 marks a boundary face.
	EToE [][]int

	// Optional face weights, parallel to EToE. nil means 1 per face.
	FaceWeights [][]float64
}

// Cartesian builds the connectivity of an nx*ny*nz hexahedral grid.
// Cell (i,j,k) has id i + nx*(j + ny*k), faces are ordered -x,+x,-y,+y,-z,+z.
func Cartesian(nx, ny, nz int) *Connectivity {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return &Connectivity{}
	}
	K := nx * ny * nz
	EToE := make([][]int, K)
	id := func(i, j, k int) int { return i + nx*(j+ny*k) }

	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := id(i, j, k)
				faces := []int{c, c, c, c, c, c} // self-connection by default
				if i > 0 {
					faces[0] = id(i-1, j, k)
				}
				if i < nx-1 {
					faces[1] = id(i+1, j, k)
				}
				if j > 0 {
					faces[2] = id(i, j-1, k)
				}
				if j < ny-1 {
					faces[3] = id(i, j+1, k)
				}
				if k > 0 {
					faces[4] = id(i, j, k-1)
				}
				if k < nz-1 {
					faces[5] = id(i, j, k+1)
				}
				EToE[c] = faces
			}
		}
	}

	return &Connectivity{NumCells: K, EToE: EToE}
}

// Validate checks sizes, index ranges and symmetry of the connectivity
func (cn *Connectivity) Validate() error {
	if cn.NumCells < 0 {
		return fmt.Errorf("negative cell count %d", cn.NumCells)
	}
	if cn.CellWeights != nil && len(cn.CellWeights) != cn.NumCells {
		return fmt.Errorf("CellWeights length %d does not match NumCells=%d",
			len(cn.CellWeights), cn.NumCells)
	}
	if len(cn.EToE) != cn.NumCells {
		return fmt.Errorf("EToE length %d does not match NumCells=%d", len(cn.EToE), cn.NumCells)
	}
	if cn.FaceWeights != nil && len(cn.FaceWeights) != cn.NumCells {
		return fmt.Errorf("FaceWeights length %d does not match NumCells=%d",
			len(cn.FaceWeights), cn.NumCells)
	}

	for c, faces := range cn.EToE {
		if cn.FaceWeights != nil && len(cn.FaceWeights[c]) != len(faces) {
			return fmt.Errorf("cell %d: %d face weights for %d faces",
				c, len(cn.FaceWeights[c]), len(faces))
		}
		for f, n := range faces {
			if isBoundary(c, n) {
				continue
			}
			if n < 0 || n >= cn.NumCells {
				return fmt.Errorf("cell %d face %d: neighbor %d out of range", c, f, n)
			}
			if !contains(cn.EToE[n], c) {
				return fmt.Errorf("asymmetric connectivity: %d lists %d but %d does not list %d",
					c, n, n, c)
			}
		}
	}
	return nil
}

func (cn *Connectivity) cellWeight(c int) float64 {
	if cn.CellWeights == nil {
		return 1
	}
	return cn.CellWeights[c]
}

func (cn *Connectivity) faceWeight(c, f int) float64 {
	if cn.FaceWeights == nil {
		return 1
	}
	return cn.FaceWeights[c][f]
}

func isBoundary(c, n int) bool {
	return n == c || n == -1
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
