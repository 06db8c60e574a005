package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notargets/wellpart/store"
)

var (
	showRun  string
	showRank int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored schedule of one rank",
	Long: `Print the export and import lists stored for a rank of a run.

Examples:
  wellpart show --db schedules.db --run scenario --rank 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer s.Close()

		exports, imports, err := s.Load(cmd.Context(), showRun, showRank)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "exports (%d):\n", len(exports))
		for _, e := range exports {
			fmt.Fprintf(out, "  %s\n", e)
		}
		fmt.Fprintf(out, "imports (%d):\n", len(imports))
		for _, e := range imports {
			fmt.Fprintf(out, "  %s\n", e)
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.Runs(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s ranks=%d root=%d strategy=%s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.NumRanks, r.Root, r.Strategy)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{showCmd, runsCmd} {
		c.Flags().StringVar(&dbPath, "db", "", "SQLite file holding schedules")
		c.MarkFlagRequired("db")
		rootCmd.AddCommand(c)
	}
	showCmd.Flags().StringVar(&showRun, "run", "", "run id")
	showCmd.Flags().IntVar(&showRank, "rank", 0, "rank")
	showCmd.MarkFlagRequired("run")
}
