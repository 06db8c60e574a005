package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector("wellpart")

	c.ObserveGraph(10, 17)
	c.ObserveWell(3)
	c.ObserveWell(4)
	c.ObservePartition([]float64{5, 4, 5, 4}, 1.11)
	c.AddTransferEntries("export", "stay", 5)
	c.AddTransferEntries("export", "stay", 0)
	c.AddTransferEntries("import", "well", 2)
	c.ObserveReconcile(0.01, nil)
	c.ObserveReconcile(0.02, errors.New("boom"))

	assert.Equal(t, 10.0, testutil.ToFloat64(c.GraphNodes))
	assert.Equal(t, 17.0, testutil.ToFloat64(c.GraphEdges))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.WellsRegistered))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.WellCells))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.RankWeight.WithLabelValues("3")))
	assert.Equal(t, 1.11, testutil.ToFloat64(c.PartitionImbalance))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.TransferEntries.WithLabelValues("export", "stay")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.TransferEntries.WithLabelValues("import", "well")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReconcileFailures))

	families, err := c.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	// None of these may panic
	c.ObserveGraph(1, 1)
	c.ObserveWell(1)
	c.ObservePartition([]float64{1}, 1)
	c.AddTransferEntries("export", "stay", 1)
	c.ObserveReconcile(1, nil)
	assert.Nil(t, c.Registry())
}
