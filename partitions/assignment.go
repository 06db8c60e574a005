package partitions

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/transfer"
)

// ErrInconsistentAssignment is matched by every InconsistentAssignmentError
var ErrInconsistentAssignment = errors.New("inconsistent rank assignment")

// InconsistentAssignmentError reports a graph node the assignment leaves out
// or sends to a rank that does not exist
type InconsistentAssignmentError struct {
	Node   int
	Rank   int // -1 when the node has no rank
	Reason string
}

func (e *InconsistentAssignmentError) Error() string {
	return fmt.Sprintf("inconsistent rank assignment: node %d: %s", e.Node, e.Reason)
}

func (e *InconsistentAssignmentError) Is(target error) bool {
	return target == ErrInconsistentAssignment
}

// Assignment maps graph node ids to destination ranks
type Assignment map[int]int

// Validate checks that the assignment is total over the nodes of g and that
// every rank lies in [0, numRanks)
func (a Assignment) Validate(g *graph.Graph, numRanks int) error {
	for _, id := range g.NodeIDs() {
		rank, ok := a[id]
		if !ok {
			return &InconsistentAssignmentError{Node: id, Rank: -1, Reason: "no rank assigned"}
		}
		if rank < 0 || rank >= numRanks {
			return &InconsistentAssignmentError{Node: id, Rank: rank,
				Reason: fmt.Sprintf("rank %d outside [0,%d)", rank, numRanks)}
		}
	}
	for _, id := range a.NodeIDs() {
		if _, ok := g.Node(id); !ok {
			return &transfer.UnresolvedNodeError{Node: id}
		}
	}
	return nil
}

// NodeIDs returns the assigned node ids in ascending order
func (a Assignment) NodeIDs() []int {
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Flatten encodes the assignment as node,rank pairs ordered by node id
func (a Assignment) Flatten() []int {
	data := make([]int, 0, 2*len(a))
	for _, id := range a.NodeIDs() {
		data = append(data, id, a[id])
	}
	return data
}

// UnflattenAssignment decodes the output of Flatten
func UnflattenAssignment(data []int) (Assignment, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("assignment encoding has odd length %d", len(data))
	}
	a := make(Assignment, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		a[data[i]] = data[i+1]
	}
	return a, nil
}

// RawLists returns the export and import lists a graph partitioner emits on
// rank: only nodes that leave root appear, keyed by their node id. Well cells
// other than the representative and nodes staying on root are left to
// transfer.Reconciler.
func RawLists(a Assignment, root, rank int) ([]transfer.ExportEntry, []transfer.ImportEntry) {
	var exports []transfer.ExportEntry
	var imports []transfer.ImportEntry
	for _, id := range a.NodeIDs() {
		dst := a[id]
		if dst == root {
			continue
		}
		if rank == root {
			exports = append(exports, transfer.ExportEntry{Cell: id, Rank: dst, Attr: transfer.Owner})
		}
		if rank == dst {
			imports = append(imports, transfer.ImportEntry{Cell: id, Rank: dst,
				Attr: transfer.Owner, Tag: transfer.NoTag})
		}
	}
	return exports, imports
}
