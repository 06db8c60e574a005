package partitions

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/notargets/wellpart/graph"
	"github.com/notargets/wellpart/metrics"
)

// DefaultMaxSpectralNodes bounds the dense Laplacian GraphPartition will
// factorize before falling back to BlockPartition
const DefaultMaxSpectralNodes = 2000

// Partitioner assigns every node of a graph to one of numRanks ranks.
// Implementations seal g before reading it.
type Partitioner interface {
	Partition(g *graph.Graph, numRanks int) (Assignment, error)
}

// PartitionStrategy defines how nodes are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive nodes, weight balanced
	RoundRobin                              // Distribute cyclically

	// Graph-based strategies
	GraphPartition // Recursive spectral bisection
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	case GraphPartition:
		return "graph"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a configuration name onto a PartitionStrategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(name) {
	case "block", "":
		return BlockPartition, nil
	case "roundrobin", "round-robin":
		return RoundRobin, nil
	case "graph", "spectral":
		return GraphPartition, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// PartitionBuilder is the in-process Partitioner
type PartitionBuilder struct {
	Strategy         PartitionStrategy
	MaxSpectralNodes int // 0 selects DefaultMaxSpectralNodes

	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// NewPartitionBuilder returns a builder for strategy; logger may be nil
func NewPartitionBuilder(strategy PartitionStrategy, logger *zap.Logger) *PartitionBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartitionBuilder{Strategy: strategy, Logger: logger}
}

// Partition seals g and assigns each of its nodes to a rank
func (pb *PartitionBuilder) Partition(g *graph.Graph, numRanks int) (Assignment, error) {
	if numRanks < 1 {
		return nil, fmt.Errorf("partition into %d ranks", numRanks)
	}
	g.Seal()

	nodes := g.Nodes()
	nToP := pb.partitionNodes(g, nodes, numRanks)

	a := make(Assignment, len(nodes))
	for i, n := range nodes {
		a[n.ID] = nToP[i]
	}

	layout, err := NewLayout(g, a, numRanks)
	if err != nil {
		return nil, err
	}
	stats := layout.Statistics()
	pb.Metrics.ObservePartition(layout.Weights(), stats.Imbalance)
	pb.logger().Info("graph partitioned",
		zap.Stringer("strategy", pb.Strategy),
		zap.Int("nodes", len(nodes)),
		zap.Int("ranks", numRanks),
		zap.Float64("imbalance", stats.Imbalance),
		zap.Int("empty_ranks", stats.EmptyRanks))
	return a, nil
}

func (pb *PartitionBuilder) logger() *zap.Logger {
	if pb.Logger == nil {
		return zap.NewNop()
	}
	return pb.Logger
}

// partitionNodes returns the rank of nodes[i] at index i
func (pb *PartitionBuilder) partitionNodes(g *graph.Graph, nodes []graph.Node, numRanks int) []int {
	nToP := make([]int, len(nodes))

	switch pb.Strategy {
	case BlockPartition:
		// Contiguous runs of node ids, cut where the running weight crosses
		// each rank's share
		var total float64
		for _, n := range nodes {
			total += n.Weight
		}
		var cum float64
		for i, n := range nodes {
			mid := cum + n.Weight/2
			cum += n.Weight
			if total <= 0 {
				nToP[i] = i * numRanks / len(nodes)
				continue
			}
			r := int(mid / total * float64(numRanks))
			if r >= numRanks {
				r = numRanks - 1
			}
			nToP[i] = r
		}

	case RoundRobin:
		for i := range nodes {
			nToP[i] = i % numRanks
		}

	case GraphPartition:
		limit := pb.MaxSpectralNodes
		if limit <= 0 {
			limit = DefaultMaxSpectralNodes
		}
		if len(nodes) > limit {
			pb.logger().Warn("graph too large for spectral bisection, using block partitioning",
				zap.Int("nodes", len(nodes)), zap.Int("limit", limit))
			return pb.partitionWithStrategy(g, nodes, BlockPartition, numRanks)
		}
		return spectralPartition(g, nodes, numRanks)

	default:
		return pb.partitionWithStrategy(g, nodes, BlockPartition, numRanks)
	}

	return nToP
}

// partitionWithStrategy applies a different strategy
func (pb *PartitionBuilder) partitionWithStrategy(g *graph.Graph, nodes []graph.Node,
	strategy PartitionStrategy, numRanks int) []int {
	oldStrategy := pb.Strategy
	pb.Strategy = strategy
	result := pb.partitionNodes(g, nodes, numRanks)
	pb.Strategy = oldStrategy
	return result
}
