package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/report"
	"github.com/sells-group/reconcile-cli/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved comparisons",
	Long:  "Commands for listing, viewing, and summarizing comparisons saved with --save or the API.",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved comparisons",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("history"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		label, _ := cmd.Flags().GetString("label")
		limit, _ := cmd.Flags().GetInt("limit")

		list, err := st.ListComparisons(ctx, store.ListFilter{Label: label, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(list) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No comparisons found.")
			return nil
		}

		formatHistoryList(cmd.OutOrStdout(), list)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <comparison-id>",
	Short: "Show the full report of a saved comparison",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("history"); err != nil {
			return err
		}

		f, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(f)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if format == report.FormatXLSX && out == "" {
			return eris.New("--out is required for the xlsx format")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, err := st.GetComparison(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history show")
		}
		return writeReport(cmd.OutOrStdout(), c.Result, format, out)
	},
}

// -- history stats --

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over saved comparisons",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("history"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		label, _ := cmd.Flags().GetString("label")
		list, err := st.ListComparisons(ctx, store.ListFilter{Label: label, Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "history stats")
		}

		formatHistoryStats(cmd.OutOrStdout(), computeHistoryStats(list))
		return nil
	},
}

func init() {
	historyListCmd.Flags().String("label", "", "filter by label")
	historyListCmd.Flags().Int("limit", 50, "max number of comparisons to display")

	historyShowCmd.Flags().String("format", "table", "report format: table, json, yaml, csv, xlsx")
	historyShowCmd.Flags().String("out", "", "write the report to this file")

	historyStatsCmd.Flags().String("label", "", "filter by label")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}

// historyStats holds aggregates over a set of saved comparisons.
type historyStats struct {
	Total        int
	Periods      int
	Matched      int
	Exact        int
	Conflicts    int
	AvgQuality   float64
	AvgMatchRate float64
	First, Last  time.Time
}

// computeHistoryStats aggregates the summaries of list.
func computeHistoryStats(list []model.Comparison) historyStats {
	var s historyStats
	s.Total = len(list)

	var quality, matchRate float64
	for _, c := range list {
		sum := c.Summary
		s.Periods += sum.TotalA + sum.TotalB
		s.Matched += sum.Matched
		s.Exact += sum.ExactMatches
		s.Conflicts += sum.Conflicts
		quality += sum.QualityScore
		matchRate += sum.MatchRate

		if s.First.IsZero() || c.CreatedAt.Before(s.First) {
			s.First = c.CreatedAt
		}
		if c.CreatedAt.After(s.Last) {
			s.Last = c.CreatedAt
		}
	}

	if s.Total > 0 {
		s.AvgQuality = quality / float64(s.Total)
		s.AvgMatchRate = matchRate / float64(s.Total)
	}
	return s
}

// formatHistoryList writes a tabular list of comparisons to w.
func formatHistoryList(out io.Writer, list []model.Comparison) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLABEL\tSOURCES\tMATCHED\tQUALITY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-------\t-------\t-------\t-------")

	for _, c := range list {
		label := c.Label
		if len(label) > 30 {
			label = label[:27] + "..."
		}
		sources := ""
		if c.SourceA != "" || c.SourceB != "" {
			sources = c.SourceA + " / " + c.SourceB
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%.1f\t%s\n",
			truncateID(c.ID),
			label,
			sources,
			c.Summary.Matched,
			max(c.Summary.TotalA, c.Summary.TotalB),
			c.Summary.QualityScore,
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatHistoryStats writes aggregate stats to w.
func formatHistoryStats(out io.Writer, s historyStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Comparisons:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Periods compared:\t%d\n", s.Periods)
	_, _ = fmt.Fprintf(w, "Matched:\t%d\n", s.Matched)
	_, _ = fmt.Fprintf(w, "  Exact:\t%d\n", s.Exact)
	_, _ = fmt.Fprintf(w, "Conflicts:\t%d\n", s.Conflicts)
	if s.Total > 0 {
		_, _ = fmt.Fprintf(w, "Avg quality score:\t%.1f\n", s.AvgQuality)
		_, _ = fmt.Fprintf(w, "Avg match rate:\t%.1f%%\n", s.AvgMatchRate)
		_, _ = fmt.Fprintf(w, "Span:\t%s .. %s\n", s.First.Format("2006-01-02"), s.Last.Format("2006-01-02"))
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
