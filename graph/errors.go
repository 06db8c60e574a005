package graph

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWell = errors.New("invalid well")
	ErrUnknownCell = errors.New("unknown cell")
	// ErrSealed is returned when a well is added after the graph was handed to a partitioner
	ErrSealed = errors.New("graph is sealed")
)

// InvalidWellError reports a well that references a missing cell or overlaps an earlier well
type InvalidWellError struct {
	Cell   int // -1 when the well as a whole is rejected
	Reason string
}

func (e *InvalidWellError) Error() string {
	if e.Cell < 0 {
		return fmt.Sprintf("invalid well: %s", e.Reason)
	}
	return fmt.Sprintf("invalid well: cell %d: %s", e.Cell, e.Reason)
}

func (e *InvalidWellError) Is(target error) bool {
	return target == ErrInvalidWell
}
