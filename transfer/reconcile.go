package transfer

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/notargets/wellpart/comm"
	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/metrics"
)

// Reconciler completes the transfer lists of one rank
type Reconciler struct {
	log     *zap.Logger
	metrics *metrics.Collector
}

// NewReconciler creates a reconciler, nil logger and collector are allowed
func NewReconciler(logger *zap.Logger, m *metrics.Collector) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{log: logger, metrics: m}
}

// ExtendExportAndImportLists completes exports and imports of the calling rank
// with a default Reconciler. See Reconciler.Extend.
func ExtendExportAndImportLists(g *graph.Graph, c comm.Communicator, root int,
	exports *[]ExportEntry, imports *[]ImportEntry) error {
	return NewReconciler(nil, nil).Extend(g, c, root, exports, imports)
}

// Extend completes the export list of root and the import lists of every rank.
// It is collective: every rank of c must call it with the same root.
//
// On root, g is the graph the partitioner consumed and exports holds the
// partitioner's entries. Every cell of a node follows the rank of whichever of
// its cells is listed; nodes with no listed cell stay on root. The missing
// entries are appended, the export list is sorted and each rank is sent the
// cells assigned to it. Every rank then appends the import entries it lacks.
// Entries with an attribute other than Owner are carried through untouched.
func (rc *Reconciler) Extend(g *graph.Graph, c comm.Communicator, root int,
	exports *[]ExportEntry, imports *[]ImportEntry) (err error) {

	start := time.Now()
	defer func() {
		rc.metrics.ObserveReconcile(time.Since(start).Seconds(), err)
	}()

	rank := c.Rank()
	var parts [][]int
	if rank == root {
		if g == nil {
			err = fmt.Errorf("no graph on root rank %d", root)
		} else {
			parts, err = rc.expandExports(g, c.Size(), root, exports)
		}
		if err != nil {
			err = fmt.Errorf("extend export list: %w", err)
			c.Abort(err)
			return err
		}
	}

	cells, err := c.Scatter(root, parts)
	if err != nil {
		return fmt.Errorf("distribute assigned cells: %w", err)
	}

	added, err := appendImports(rank, cells, imports)
	if err != nil {
		err = fmt.Errorf("extend import list: %w", err)
		c.Abort(err)
		return err
	}
	rc.metrics.AddTransferEntries("import", "reconciled", added)

	rc.log.Debug("import list extended",
		zap.Int("rank", rank),
		zap.Int("assigned", len(cells)),
		zap.Int("added", added))
	return nil
}

// expandExports appends the stay and well entries to the root's export list
// and returns the cells assigned to every rank
func (rc *Reconciler) expandExports(g *graph.Graph, size, root int,
	exports *[]ExportEntry) ([][]int, error) {

	listed := make(map[int]int) // cell -> destination rank
	for _, e := range *exports {
		if e.Attr != Owner {
			continue
		}
		if _, err := g.NodeOf(e.Cell); err != nil {
			return nil, &UnresolvedNodeError{Node: e.Cell}
		}
		if e.Rank < 0 || e.Rank >= size {
			return nil, fmt.Errorf("cell %d exported to rank %d, valid ranks are [0,%d)",
				e.Cell, e.Rank, size)
		}
		if r, ok := listed[e.Cell]; ok && r != e.Rank {
			node, _ := g.NodeOf(e.Cell)
			return nil, &SplitWellError{Node: node, Ranks: []int{r, e.Rank}}
		}
		listed[e.Cell] = e.Rank
	}

	parts := make([][]int, size)
	var stays, expanded int
	for _, n := range g.Nodes() {
		dest, found := root, false
		for _, cell := range n.Cells {
			r, ok := listed[cell]
			if !ok {
				continue
			}
			if found && r != dest {
				return nil, &SplitWellError{Node: n.ID, Ranks: []int{dest, r}}
			}
			dest, found = r, true
		}

		for _, cell := range n.Cells {
			if _, ok := listed[cell]; !ok {
				*exports = append(*exports, ExportEntry{Cell: cell, Rank: dest, Attr: Owner})
				if dest == root {
					stays++
				} else {
					expanded++
				}
			}
			parts[dest] = append(parts[dest], cell)
		}
	}

	*exports = compactExports(*exports)
	for _, p := range parts {
		sort.Ints(p)
	}

	rc.metrics.AddTransferEntries("export", "stay", stays)
	rc.metrics.AddTransferEntries("export", "well", expanded)
	rc.log.Debug("export list extended",
		zap.Int("root", root),
		zap.Int("nodes", g.Size()),
		zap.Int("stays", stays),
		zap.Int("wellCells", expanded),
		zap.Int("entries", len(*exports)))

	return parts, nil
}

// appendImports adds an Owner import for every assigned cell not yet listed.
// Existing Owner entries must belong to the assigned set.
func appendImports(rank int, assigned []int, imports *[]ImportEntry) (int, error) {
	want := make(map[int]bool, len(assigned))
	for _, c := range assigned {
		want[c] = true
	}

	have := make(map[int]bool)
	kept := make([]ImportEntry, 0, len(*imports)+len(assigned))
	for _, e := range *imports {
		if e.Attr != Owner {
			kept = append(kept, e)
			continue
		}
		if !want[e.Cell] || e.Rank != rank {
			return 0, fmt.Errorf("%w: rank %d lists %v but cell %d is not assigned to it",
				ErrUnexpectedImport, rank, e, e.Cell)
		}
		if have[e.Cell] {
			continue
		}
		have[e.Cell] = true
		kept = append(kept, e)
	}

	added := 0
	for _, c := range assigned {
		if have[c] {
			continue
		}
		kept = append(kept, ImportEntry{Cell: c, Rank: rank, Attr: Owner, Tag: NoTag})
		added++
	}
	*imports = kept
	return added, nil
}

// compactExports sorts the list and drops repeated entries
func compactExports(list []ExportEntry) []ExportEntry {
	SortExports(list)
	out := make([]ExportEntry, 0, len(list))
	for _, e := range list {
		if n := len(out); n > 0 && out[n-1] == e {
			continue
		}
		out = append(out, e)
	}
	return out
}
