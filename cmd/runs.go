package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contract-extract/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect extraction run history",
	Long:  "Commands for listing, viewing, and summarizing extraction runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		source, _ := cmd.Flags().GetString("source")
		aiOnly, _ := cmd.Flags().GetBool("ai-only")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Source: source,
			AIOnly: aiOnly,
			Limit:  limit,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.ToMap())
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		stats := computeRunStats(runs)
		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("source", "", "filter by source document")
	runsListCmd.Flags().Bool("ai-only", false, "only show runs that used the model")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total       int
	AIUsed      int
	Escalated   int
	AvgResolved float64
	AvgIssues   float64
	AvgMS       float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []store.RunSummary) runStats {
	var s runStats
	s.Total = len(runs)
	if s.Total == 0 {
		return s
	}

	var resolved, issues, ms int64
	for _, r := range runs {
		if r.AIUsed {
			s.AIUsed++
		}
		if r.Escalated {
			s.Escalated++
		}
		resolved += int64(r.Resolved)
		issues += int64(r.Issues)
		ms += r.ElapsedMS
	}

	n := float64(s.Total)
	s.AvgResolved = float64(resolved) / n
	s.AvgIssues = float64(issues) / n
	s.AvgMS = float64(ms) / n
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tAI\tESCALATED\tRESOLVED\tISSUES\tELAPSED\tCREATED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%d\t%d\t%dms\t%s\n",
			r.ID,
			r.Source,
			r.AIUsed,
			r.Escalated,
			r.Resolved,
			r.Issues,
			r.ElapsedMS,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate statistics to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Model used:\t%d\n", s.AIUsed)
	_, _ = fmt.Fprintf(w, "Escalated:\t%d\n", s.Escalated)
	_, _ = fmt.Fprintf(w, "Avg fields resolved:\t%.1f\n", s.AvgResolved)
	_, _ = fmt.Fprintf(w, "Avg issues:\t%.1f\n", s.AvgIssues)
	_, _ = fmt.Fprintf(w, "Avg elapsed:\t%.0fms\n", s.AvgMS)
	_ = w.Flush()
}
