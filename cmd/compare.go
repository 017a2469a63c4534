package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reconcile-cli/internal/compare"
	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/ingest"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/ocr"
	"github.com/sells-group/reconcile-cli/internal/report"
	"github.com/sells-group/reconcile-cli/pkg/anthropic"
)

const dateLayout = "2006-01-02"

var (
	compareA      string
	compareB      string
	compareFormat string
	compareOut    string
	compareSave   bool
	compareLabel  string
	compareAsOf   string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Reconcile an employment spreadsheet against a benefits statement",
	Long: `Loads the periods in --a (spreadsheet, CSV or JSON) and --b (PDF, text,
CSV or JSON), reconciles them and writes a report. Ongoing periods are
measured up to --as-of, which defaults to today.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("compare"); err != nil {
			return err
		}

		format, err := report.ParseFormat(compareFormat)
		if err != nil {
			return err
		}
		if format == report.FormatXLSX && compareOut == "" {
			return eris.New("--out is required for the xlsx format")
		}
		now := time.Now()
		asOf, err := parseAsOf(compareAsOf, now)
		if err != nil {
			return err
		}

		opts, err := ingestOptions(cfg)
		if err != nil {
			return err
		}
		listA, listB, err := loadSources(ctx, compareA, compareB, opts)
		if err != nil {
			return err
		}

		engine, err := compare.New(cfg.Compare, compare.Options{AsOf: asOf, ReferenceYear: now.Year()})
		if err != nil {
			return err
		}
		result, err := engine.Compare(listA, listB)
		if err != nil {
			return err
		}

		zap.L().Info("comparison complete",
			zap.String("a", compareA),
			zap.String("b", compareB),
			zap.Int("matched", result.Summary.Matched),
			zap.Float64("quality_score", result.Summary.QualityScore),
		)

		if err := writeReport(cmd.OutOrStdout(), result, format, compareOut); err != nil {
			return err
		}

		if !compareSave {
			return nil
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		saved, err := st.SaveComparison(ctx, model.Comparison{
			Label:   compareLabel,
			SourceA: filepath.Base(compareA),
			SourceB: filepath.Base(compareB),
			AsOf:    asOf.Format(dateLayout),
			Result:  result,
		})
		if err != nil {
			zap.L().Error("save comparison failed", zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved comparison %s\n", saved.ID)
		return nil
	},
}

// ingestOptions builds the loader options, including the OCR extractor and
// the statement parser the config selects.
func ingestOptions(c *config.Config) (ingest.Options, error) {
	ext, err := ocr.NewExtractor(c.OCR)
	if err != nil {
		return ingest.Options{}, err
	}
	opts := ingest.OptionsFromConfig(c.Ingest, ext)
	if c.Ingest.Parser == "anthropic" {
		opts.Parser = ingest.NewLLMParser(anthropic.NewClient(c.Anthropic.Key), c.Anthropic.Model, c.Anthropic.MaxTokens)
	}
	return opts, nil
}

// loadSources reads both inputs concurrently.
func loadSources(ctx context.Context, pathA, pathB string, opts ingest.Options) ([]model.RawPeriod, []model.RawPeriod, error) {
	var listA, listB []model.RawPeriod
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listA, err = ingest.LoadFile(gctx, pathA, model.SourceA, opts)
		return err
	})
	g.Go(func() error {
		var err error
		listB, err = ingest.LoadFile(gctx, pathB, model.SourceB, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return listA, listB, nil
}

// parseAsOf parses an ISO date, defaulting to the calendar day of now.
func parseAsOf(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid as-of date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// writeReport renders result to out when set, otherwise to w.
func writeReport(w io.Writer, result *model.ComparisonResult, format report.Format, out string) error {
	if format == report.FormatXLSX {
		return report.WriteXLSX(out, result)
	}
	if out == "" {
		return report.Write(w, result, format)
	}

	f, err := os.Create(out)
	if err != nil {
		return eris.Wrapf(err, "create report %s", out)
	}
	if err := report.Write(f, result, format); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close report %s", out)
}

func init() {
	compareCmd.Flags().StringVar(&compareA, "a", "", "employment spreadsheet (.xlsx, .csv, .json)")
	compareCmd.Flags().StringVar(&compareB, "b", "", "benefits statement (.pdf, .txt, .csv, .json)")
	compareCmd.Flags().StringVar(&compareFormat, "format", "table", "report format: table, json, yaml, csv, xlsx")
	compareCmd.Flags().StringVar(&compareOut, "out", "", "write the report to this file")
	compareCmd.Flags().BoolVar(&compareSave, "save", false, "persist the comparison in the configured store")
	compareCmd.Flags().StringVar(&compareLabel, "label", "", "label stored with a saved comparison")
	compareCmd.Flags().StringVar(&compareAsOf, "as-of", "", "measure ongoing periods up to this date (YYYY-MM-DD, default today)")
	_ = compareCmd.MarkFlagRequired("a")
	_ = compareCmd.MarkFlagRequired("b")
	rootCmd.AddCommand(compareCmd)
}
