package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logLevel string
	devLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "wellpart",
	Short: "Partition grids with wells and build transfer schedules",
	Long: `wellpart partitions a Cartesian grid or an unstructured mesh over a set of
ranks while keeping every well on a single rank, and completes the export and
import lists each rank needs to move its cells.

Schedules can be stored in SQLite and inspected later with "show" and "runs".`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "human readable development logging")
}

// newLogger builds the process logger; flags override the configured level
func newLogger(level string, development bool) (*zap.Logger, error) {
	if logLevel != "" {
		level = logLevel
	}
	if devLog {
		development = true
	}

	zcfg := zap.NewProductionConfig()
	if development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}
