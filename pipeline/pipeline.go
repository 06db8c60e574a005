// Package pipeline runs a complete partitioning pass over an in-process set
// of ranks: build the well graph on the root, partition it, broadcast the
// assignment, reconcile every rank's transfer lists, verify and store them.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/notargets/gocfd/DG3D/mesh"
	"go.uber.org/zap"

	"github.com/notargets/wellpart/comm"
	"github.com/notargets/wellpart/config"
	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/metrics"
	"github.com/notargets/wellpart/partitions"
	"github.com/notargets/wellpart/partitions/meshpart"
	"github.com/notargets/wellpart/store"
	"github.com/notargets/wellpart/transfer"
)

// Options wires a pass. Config is required; everything else may be nil.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Store   *store.Store

	// Partitioner overrides the one selected by Config.Partition.Strategy
	Partitioner partitions.Partitioner

	// Connectivity overrides Config.Grid
	Connectivity *graph.Connectivity
}

// RankResult holds the reconciled lists of one rank
type RankResult struct {
	Rank    int
	Exports []transfer.ExportEntry
	Imports []transfer.ImportEntry
}

// Result summarises a pass
type Result struct {
	RunID  string
	Nodes  int
	Edges  int
	Wells  int
	Layout *partitions.Layout
	Halo   *partitions.Halo // nil unless overlap is enabled
	Ranks  []RankResult
}

// Run executes one pass on Config.Ranks ranks. It fails as a whole: the
// schedules of all ranks are stored together once every rank has verified,
// and nothing is stored when a rank or the write fails.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	runID := cfg.Store.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	res := &Result{RunID: runID, Ranks: make([]RankResult, cfg.Ranks)}
	rc := transfer.NewReconciler(log, opts.Metrics)

	err := comm.Run(cfg.Ranks, func(c comm.Communicator) error {
		p := &pass{opts: opts, cfg: cfg, log: log.With(zap.Int("rank", c.Rank())),
			c: c, rc: rc, res: res}
		return p.run(ctx)
	})
	if err != nil {
		return nil, err
	}
	if opts.Store != nil {
		if err := saveRun(ctx, opts.Store, cfg, res); err != nil {
			return nil, err
		}
	}

	log.Info("partitioning pass complete",
		zap.String("run", runID),
		zap.Int("ranks", cfg.Ranks),
		zap.Int("nodes", res.Nodes),
		zap.Int("wells", res.Wells),
		zap.Float64("imbalance", res.Layout.Statistics().Imbalance))
	return res, nil
}

// pass is the work of one rank
type pass struct {
	opts Options
	cfg  *config.Config
	log  *zap.Logger
	c    comm.Communicator
	rc   *transfer.Reconciler
	res  *Result

	// Root only
	conn   *graph.Connectivity
	layout *partitions.Layout
}

func (p *pass) run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root, rank := p.cfg.Root, p.c.Rank()

	// Only the root holds cells
	var (
		g    *graph.Graph
		flat []int
		err  error
	)
	if rank == root {
		var a partitions.Assignment
		g, a, err = p.partition()
		if err != nil {
			return err
		}
		flat = a.Flatten()
	} else if g, err = graph.NewGraph(nil); err != nil {
		return err
	}

	flat, err = p.c.Broadcast(root, flat)
	if err != nil {
		return fmt.Errorf("broadcast assignment: %w", err)
	}
	a, err := partitions.UnflattenAssignment(flat)
	if err != nil {
		return err
	}

	exports, imports := partitions.RawLists(a, root, rank)
	if p.cfg.Partition.Overlap {
		if err := p.addOverlap(g, a, &exports, &imports); err != nil {
			return err
		}
	}
	if err := p.rc.Extend(g, p.c, root, &exports, &imports); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.verify(exports, imports); err != nil {
		return err
	}
	if rank == root {
		if p.layout == nil {
			if p.layout, err = partitions.NewLayout(g, a, p.c.Size()); err != nil {
				return err
			}
		}
		p.res.Layout = p.layout
	}
	p.res.Ranks[rank] = RankResult{Rank: rank, Exports: exports, Imports: imports}

	// No rank completes before every rank has verified
	if err := p.c.Barrier(); err != nil {
		return err
	}
	p.log.Debug("rank complete",
		zap.Int("exports", len(exports)),
		zap.Int("imports", len(imports)))
	return nil
}

// saveRun stores the lists of every rank in one transaction
func saveRun(ctx context.Context, s *store.Store, cfg *config.Config, res *Result) error {
	run := store.Run{ID: res.RunID, NumRanks: cfg.Ranks, Root: cfg.Root,
		Strategy: cfg.Partition.Strategy}
	ranks := make([]store.RankLists, len(res.Ranks))
	for r, rr := range res.Ranks {
		ranks[r] = store.RankLists{Rank: rr.Rank, Exports: rr.Exports, Imports: rr.Imports}
	}
	if err := s.SaveRun(ctx, run, ranks); err != nil {
		return fmt.Errorf("store schedule: %w", err)
	}
	return nil
}

// partition builds the graph, registers the wells and partitions it
func (p *pass) partition() (*graph.Graph, partitions.Assignment, error) {
	conn, msh, err := p.connectivity()
	if err != nil {
		return nil, nil, err
	}
	p.conn = conn
	g, err := graph.NewGraph(conn)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range p.cfg.Wells {
		if err := g.AddWell(w); err != nil {
			return nil, nil, fmt.Errorf("register well %v: %w", w, err)
		}
		p.opts.Metrics.ObserveWell(len(w))
	}
	edges := len(g.Edges())
	p.opts.Metrics.ObserveGraph(g.Size(), edges)
	p.res.Nodes, p.res.Edges, p.res.Wells = g.Size(), edges, len(p.cfg.Wells)

	pt, err := p.partitioner(msh)
	if err != nil {
		return nil, nil, err
	}
	a, err := pt.Partition(g, p.c.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("partition graph: %w", err)
	}
	if err := a.Validate(g, p.c.Size()); err != nil {
		return nil, nil, err
	}
	p.log.Info("graph partitioned",
		zap.Int("cells", g.NumCells()),
		zap.Int("nodes", g.Size()),
		zap.Int("edges", edges))
	return g, a, nil
}

func (p *pass) connectivity() (*graph.Connectivity, *mesh.Mesh, error) {
	if p.opts.Connectivity != nil {
		return p.opts.Connectivity, nil, nil
	}
	if p.cfg.Grid.Mesh != "" {
		return meshpart.LoadConnectivity(p.cfg.Grid.Mesh)
	}
	d := p.cfg.Grid.Dims
	return graph.Cartesian(d[0], d[1], d[2]), nil, nil
}

func (p *pass) partitioner(msh *mesh.Mesh) (partitions.Partitioner, error) {
	if p.opts.Partitioner != nil {
		return p.opts.Partitioner, nil
	}
	pc := p.cfg.Partition
	if pc.Strategy == "metis" {
		return &meshpart.MetisPartitioner{
			Mesh:            msh,
			ImbalanceFactor: pc.Imbalance,
			Objective:       pc.Objective,
			Logger:          p.log,
		}, nil
	}
	strategy, err := partitions.ParseStrategy(pc.Strategy)
	if err != nil {
		return nil, err
	}
	pb := partitions.NewPartitionBuilder(strategy, p.log)
	pb.MaxSpectralNodes = pc.MaxSpectralNodes
	pb.Metrics = p.opts.Metrics
	return pb, nil
}

// addOverlap appends the Overlap entries of the one-cell halo: the root
// exports every overlap copy and each rank imports the copies it receives
func (p *pass) addOverlap(g *graph.Graph, a partitions.Assignment,
	exports *[]transfer.ExportEntry, imports *[]transfer.ImportEntry) error {

	root := p.cfg.Root
	var parts [][]int
	if p.c.Rank() == root {
		layout, err := partitions.NewLayout(g, a, p.c.Size())
		if err == nil {
			p.layout = layout
			p.res.Halo, err = partitions.NewHalo(p.conn, layout)
		}
		if err != nil {
			err = fmt.Errorf("overlap layer: %w", err)
			p.c.Abort(err)
			return err
		}
		parts = make([][]int, p.c.Size())
		for r := range parts {
			parts[r] = p.res.Halo.RecvCells(r)
		}
		*exports = append(*exports, p.res.Halo.Exports()...)
	}

	cells, err := p.c.Scatter(root, parts)
	if err != nil {
		return fmt.Errorf("distribute overlap cells: %w", err)
	}
	*imports = append(*imports, partitions.OverlapImports(p.c.Rank(), cells)...)
	return nil
}

// verify gathers every rank's lists on the root and checks that they agree
func (p *pass) verify(exports []transfer.ExportEntry, imports []transfer.ImportEntry) error {
	root := p.cfg.Root
	allE, err := p.c.Gather(root, encodeExports(exports))
	if err != nil {
		return fmt.Errorf("gather exports: %w", err)
	}
	allI, err := p.c.Gather(root, encodeImports(imports))
	if err != nil {
		return fmt.Errorf("gather imports: %w", err)
	}
	if p.c.Rank() != root {
		return nil
	}

	e := make([][]transfer.ExportEntry, len(allE))
	i := make([][]transfer.ImportEntry, len(allI))
	for r := range allE {
		if e[r], err = decodeExports(allE[r]); err != nil {
			return err
		}
		if i[r], err = decodeImports(allI[r]); err != nil {
			return err
		}
	}
	return transfer.VerifySchedules(e, i)
}
