// Package metrics collects Prometheus metrics for graph construction,
// partitioning and transfer-list reconciliation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all metrics of one partitioning run on its own registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Graph metrics
	GraphNodes      prometheus.Gauge
	GraphEdges      prometheus.Gauge
	WellsRegistered prometheus.Counter
	WellCells       prometheus.Counter

	// Partition metrics
	RankWeight         *prometheus.GaugeVec
	PartitionImbalance prometheus.Gauge

	// Reconciliation metrics
	TransferEntries   *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	ReconcileFailures prometheus.Counter
}

// NewCollector creates a collector whose metrics live under namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Number of partitioning graph nodes after well merging",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Number of partitioning graph edges after well merging",
		}),
		WellsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wells_registered_total",
			Help:      "Total number of wells merged into the graph",
		}),
		WellCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "well_cells_total",
			Help:      "Total number of cells belonging to registered wells",
		}),
		RankWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rank_weight",
			Help:      "Summed cell weight assigned to each rank",
		}, []string{"rank"}),
		PartitionImbalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partition_imbalance",
			Help:      "Max rank weight divided by average rank weight",
		}),
		TransferEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_entries_total",
			Help:      "Transfer list entries added during reconciliation",
		}, []string{"list", "kind"}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent extending export and import lists on one rank",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_failures_total",
			Help:      "Number of failed reconciliations",
		}),
	}

	registry.MustRegister(
		c.GraphNodes,
		c.GraphEdges,
		c.WellsRegistered,
		c.WellCells,
		c.RankWeight,
		c.PartitionImbalance,
		c.TransferEntries,
		c.ReconcileDuration,
		c.ReconcileFailures,
	)

	return c
}

// Registry returns the registry the collector's metrics are registered on
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveGraph records the node and edge counts of a finished graph
func (c *Collector) ObserveGraph(nodes, edges int) {
	if c == nil {
		return
	}
	c.GraphNodes.Set(float64(nodes))
	c.GraphEdges.Set(float64(edges))
}

// ObserveWell records one registered well of the given size
func (c *Collector) ObserveWell(cells int) {
	if c == nil {
		return
	}
	c.WellsRegistered.Inc()
	c.WellCells.Add(float64(cells))
}

// ObservePartition records per-rank weights and the resulting imbalance
func (c *Collector) ObservePartition(weights []float64, imbalance float64) {
	if c == nil {
		return
	}
	for rank, w := range weights {
		c.RankWeight.WithLabelValues(strconv.Itoa(rank)).Set(w)
	}
	c.PartitionImbalance.Set(imbalance)
}

// AddTransferEntries counts entries added to an export or import list
func (c *Collector) AddTransferEntries(list, kind string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.TransferEntries.WithLabelValues(list, kind).Add(float64(n))
}

// ObserveReconcile records the duration and outcome of one reconciliation
func (c *Collector) ObserveReconcile(seconds float64, err error) {
	if c == nil {
		return
	}
	c.ReconcileDuration.Observe(seconds)
	if err != nil {
		c.ReconcileFailures.Inc()
	}
}
