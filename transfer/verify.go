package transfer

import (
	"fmt"
)

// VerifySchedules checks that the completed lists of all ranks agree: every
// Owner export (cell, dst) on any rank has exactly one Owner import of cell on
// dst, and every Owner import has exactly one matching export. exports[r] and
// imports[r] are the lists of rank r.
func VerifySchedules(exports [][]ExportEntry, imports [][]ImportEntry) error {
	if len(exports) != len(imports) {
		return fmt.Errorf("%w: %d export lists for %d import lists",
			ErrInconsistentSchedule, len(exports), len(imports))
	}
	numRanks := len(exports)

	// Build send expectations: cell -> destination
	sends := make(map[int]int)
	for src, list := range exports {
		for _, e := range list {
			if e.Attr != Owner {
				continue
			}
			if e.Rank < 0 || e.Rank >= numRanks {
				return fmt.Errorf("%w: rank %d exports cell %d to rank %d of %d",
					ErrInconsistentSchedule, src, e.Cell, e.Rank, numRanks)
			}
			if dst, ok := sends[e.Cell]; ok {
				return fmt.Errorf("%w: cell %d exported twice (to %d and %d)",
					ErrInconsistentSchedule, e.Cell, dst, e.Rank)
			}
			sends[e.Cell] = e.Rank
		}
	}

	// Verify receive expectations match
	received := make(map[int]int)
	for dst, list := range imports {
		for _, e := range list {
			if e.Attr != Owner {
				continue
			}
			if e.Rank != dst {
				return fmt.Errorf("%w: rank %d imports cell %d tagged for rank %d",
					ErrInconsistentSchedule, dst, e.Cell, e.Rank)
			}
			if prev, ok := received[e.Cell]; ok {
				return fmt.Errorf("%w: cell %d imported twice (on %d and %d)",
					ErrInconsistentSchedule, e.Cell, prev, dst)
			}
			expected, ok := sends[e.Cell]
			if !ok {
				return fmt.Errorf("%w: rank %d imports cell %d, but no rank exports it",
					ErrInconsistentSchedule, dst, e.Cell)
			}
			if expected != dst {
				return fmt.Errorf("%w: cell %d exported to %d, but imported on %d",
					ErrInconsistentSchedule, e.Cell, expected, dst)
			}
			received[e.Cell] = dst
		}
	}

	for cell, dst := range sends {
		if _, ok := received[cell]; !ok {
			return fmt.Errorf("%w: cell %d exported to %d, but %d does not import it",
				ErrInconsistentSchedule, cell, dst, dst)
		}
	}
	return nil
}
