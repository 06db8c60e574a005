package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/wellpart/config"
	"github.com/notargets/wellpart/metrics"
	"github.com/notargets/wellpart/pipeline"
	"github.com/notargets/wellpart/store"
	"github.com/notargets/wellpart/transfer"
)

var (
	configPath  string
	ranks       int
	dbPath      string
	strategy    string
	metricsFile string
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Run a partitioning pass",
	Long: `Build the well graph, partition it over the configured number of ranks
and reconcile the transfer lists of every rank.

Examples:
  wellpart partition --config scenario.yaml
  wellpart partition --config scenario.yaml --ranks 6 --db schedules.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("ranks") {
			cfg.Ranks = ranks
		}
		if cmd.Flags().Changed("db") {
			cfg.Store.Path = dbPath
		}
		if cmd.Flags().Changed("strategy") {
			cfg.Partition.Strategy = strategy
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := newLogger(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return err
		}
		defer log.Sync()

		opts := pipeline.Options{
			Config:  cfg,
			Logger:  log,
			Metrics: metrics.NewCollector(cfg.Metrics.Namespace),
		}
		if cfg.Store.Path != "" {
			s, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()
			opts.Store = s
		}

		res, err := pipeline.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), res)

		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, opts.Metrics.Registry()); err != nil {
				log.Warn("failed to write metrics", zap.String("file", metricsFile), zap.Error(err))
			}
		}
		return nil
	},
}

func printSummary(out io.Writer, res *pipeline.Result) {
	stats := res.Layout.Statistics()
	fmt.Fprintf(out, "run %s: %d nodes, %d edges, %d wells, imbalance %.3f\n",
		res.RunID, res.Nodes, res.Edges, res.Wells, stats.Imbalance)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCELLS\tWEIGHT\tEXPORTS\tIMPORTS")
	for _, r := range res.Ranks {
		p := res.Layout.Partitions[r.Rank]
		fmt.Fprintf(tw, "%d\t%d\t%g\t%d\t%d\n",
			r.Rank, p.NumCells, p.Weight, len(r.Exports), len(transfer.OwnedCells(r.Imports)))
	}
	tw.Flush()
}

func init() {
	partitionCmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	partitionCmd.Flags().IntVarP(&ranks, "ranks", "n", 1, "number of ranks")
	partitionCmd.Flags().StringVar(&dbPath, "db", "", "SQLite file to store schedules in")
	partitionCmd.Flags().StringVar(&strategy, "strategy", "block", "block, roundrobin, graph or metis")
	partitionCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	rootCmd.AddCommand(partitionCmd)
}
