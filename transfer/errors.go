package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvedNode       = errors.New("unresolved node")
	ErrSplitWell            = errors.New("node split across ranks")
	ErrUnexpectedImport     = errors.New("unexpected import")
	ErrInconsistentSchedule = errors.New("inconsistent transfer schedule")
)

// UnresolvedNodeError reports a node or cell id the local graph does not know
type UnresolvedNodeError struct {
	Node int
}

func (e *UnresolvedNodeError) Error() string {
	return fmt.Sprintf("node %d cannot be resolved to any cell of the graph", e.Node)
}

func (e *UnresolvedNodeError) Is(target error) bool {
	return target == ErrUnresolvedNode
}

// SplitWellError reports cells of one graph node scheduled for different ranks
type SplitWellError struct {
	Node  int
	Ranks []int
}

func (e *SplitWellError) Error() string {
	return fmt.Sprintf("cells of node %d are exported to ranks %v", e.Node, e.Ranks)
}

func (e *SplitWellError) Is(target error) bool {
	return target == ErrSplitWell
}
