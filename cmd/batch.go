package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reconcile-cli/internal/compare"
	"github.com/sells-group/reconcile-cli/internal/ingest"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
	"github.com/sells-group/reconcile-cli/internal/report"
	"github.com/sells-group/reconcile-cli/internal/store"
)

var (
	batchManifest string
	batchOutDir   string
	batchFormat   string
	batchSave     bool
	batchLimit    int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Reconcile every file pair listed in a manifest",
	Long: `Reads a CSV manifest with the columns label, a, b and optionally as_of,
reconciles each pair concurrently and writes one report per row to --out-dir.
Relative paths in the manifest are resolved against the manifest's directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}
		format, err := report.ParseFormat(batchFormat)
		if err != nil {
			return err
		}

		jobs, err := readManifest(batchManifest)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return eris.Wrapf(err, "batch: create %s", batchOutDir)
		}

		opts, err := ingestOptions(cfg)
		if err != nil {
			return err
		}
		runner := &batchRunner{
			opts:   opts,
			cache:  normalize.NewCache(),
			format: format,
			outDir: batchOutDir,
			now:    time.Now(),
		}
		if batchSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			runner.store = st
		}

		res, err := processBatch(ctx, jobs, batchLimit, cfg.Batch.MaxConcurrent, runner.run)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "batch complete: %d succeeded, %d failed\n", res.Succeeded, res.Failed)
		if res.Failed > 0 {
			return eris.Errorf("batch: %d of %d comparisons failed", res.Failed, res.Succeeded+res.Failed)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "CSV manifest with label, a, b and optional as_of columns")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "reports", "directory for the per-row reports")
	batchCmd.Flags().StringVar(&batchFormat, "format", "json", "report format: table, json, yaml, csv, xlsx")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist every comparison in the configured store")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of manifest rows to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(batchCmd)
}

// batchJob is one manifest row.
type batchJob struct {
	Row   int
	Label string
	A     string
	B     string
	AsOf  string
}

// readManifest parses the manifest at path. The header row names the
// columns; label, a and b are required.
func readManifest(path string) ([]batchJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open manifest %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := ingest.ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read manifest %s", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("batch: manifest %s is empty", path)
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"label", "a", "b"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("batch: manifest %s has no %q column", path, required)
		}
	}

	base := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var jobs []batchJob
	for n, row := range rows[1:] {
		job := batchJob{
			Row:   n + 2,
			Label: get(row, "label"),
			A:     resolve(get(row, "a")),
			B:     resolve(get(row, "b")),
			AsOf:  get(row, "as_of"),
		}
		if job.Label == "" && job.A == "" && job.B == "" {
			continue
		}
		if job.A == "" || job.B == "" {
			return nil, eris.Errorf("batch: manifest row %d needs both a and b", job.Row)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// runFunc reconciles a single manifest row.
type runFunc func(ctx context.Context, job batchJob) (*model.ComparisonResult, error)

// batchResult counts the outcome of a batch.
type batchResult struct {
	Succeeded int64
	Failed    int64
}

// processBatch applies limit, then runs jobs concurrently. A failed job is
// logged and counted without aborting the rest.
func processBatch(ctx context.Context, jobs []batchJob, limit, concurrency int, run runFunc) (batchResult, error) {
	if len(jobs) == 0 {
		zap.L().Info("no manifest rows found")
		return batchResult{}, nil
	}

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("jobs", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, job := range jobs {
		g.Go(func() error {
			log := zap.L().With(zap.String("label", job.Label), zap.Int("row", job.Row))

			result, err := run(gctx, job)
			if err != nil {
				failed.Add(1)
				log.Error("comparison failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("comparison complete",
				zap.Int("matched", result.Summary.Matched),
				zap.Float64("quality_score", result.Summary.QualityScore),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batchResult{}, eris.Wrap(err, "batch processing")
	}

	res := batchResult{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", res.Succeeded),
		zap.Int64("failed", res.Failed),
	)
	return res, nil
}

// batchRunner holds what every row of a batch shares.
type batchRunner struct {
	opts   ingest.Options
	cache  *normalize.Cache
	format report.Format
	outDir string
	store  store.Store
	now    time.Time
}

func (b *batchRunner) run(ctx context.Context, job batchJob) (*model.ComparisonResult, error) {
	asOf, err := parseAsOf(job.AsOf, b.now)
	if err != nil {
		return nil, err
	}
	listA, listB, err := loadSources(ctx, job.A, job.B, b.opts)
	if err != nil {
		return nil, err
	}

	engine, err := compare.New(cfg.Compare, compare.Options{AsOf: asOf, ReferenceYear: b.now.Year(), Cache: b.cache})
	if err != nil {
		return nil, err
	}
	result, err := engine.Compare(listA, listB)
	if err != nil {
		return nil, err
	}

	out := filepath.Join(b.outDir, reportName(job)+"."+string(b.format))
	if b.format == report.FormatTable {
		out = strings.TrimSuffix(out, ".table") + ".txt"
	}
	if err := writeReport(nil, result, b.format, out); err != nil {
		return nil, err
	}

	if b.store != nil {
		if _, err := b.store.SaveComparison(ctx, model.Comparison{
			Label:   job.Label,
			SourceA: filepath.Base(job.A),
			SourceB: filepath.Base(job.B),
			AsOf:    asOf.Format(dateLayout),
			Result:  result,
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// reportName derives a file-safe name from the row number and label.
func reportName(job batchJob) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(job.Label))
	if strings.Trim(name, "_") == "" {
		return fmt.Sprintf("row-%03d", job.Row)
	}
	return fmt.Sprintf("row-%03d_%s", job.Row, name)
}
