// Package ingest loads employment-period lists from the files users hand
// in: spreadsheets and CSV exports for the structured source, and PDF or
// plain-text benefits statements for the OCR'd source.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/ocr"
)

// Options configures LoadFile.
type Options struct {
	SheetName  string
	SheetIndex int
	// HeaderRow is the first row searched for column headers.
	HeaderRow int
	// Extractor converts PDFs to text. Required only for .pdf inputs.
	Extractor ocr.Extractor
	// Parser reads statement text when the line heuristic finds fewer than
	// ParserMinRows periods. Nil disables it.
	Parser        PeriodParser
	ParserMinRows int
}

// OptionsFromConfig builds Options from the ingest config section.
func OptionsFromConfig(cfg config.IngestConfig, ext ocr.Extractor) Options {
	return Options{
		SheetName:  cfg.SheetName,
		SheetIndex: cfg.SheetIndex,
		HeaderRow:  cfg.HeaderRow,
		Extractor:  ext,
		// Parser is set by the caller; it needs an API client.
		ParserMinRows: cfg.LLMMinRows,
	}
}

// LoadFile reads the periods in path, dispatching on the file extension,
// and tags each with source.
func LoadFile(ctx context.Context, path string, source model.Source, opts Options) ([]model.RawPeriod, error) {
	if !source.Valid() {
		return nil, eris.Errorf("ingest: invalid source %q", source)
	}

	var (
		periods []model.RawPeriod
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		var rows [][]string
		rows, err = ReadXLSX(path, XLSXOptions{SheetName: opts.SheetName, SheetIndex: opts.SheetIndex})
		if err == nil {
			periods, err = FromRows(rows, opts.HeaderRow, source)
		}
	case ".csv", ".tsv":
		periods, err = loadCSV(path, opts.HeaderRow, source)
	case ".json":
		periods, err = loadJSON(path, source)
	case ".txt":
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		periods, err = parseStatement(ctx, string(data), source, opts.Parser, opts.ParserMinRows)
	case ".pdf":
		if opts.Extractor == nil {
			return nil, eris.New("ingest: pdf input requires an OCR extractor")
		}
		var text string
		text, err = opts.Extractor.ExtractText(ctx, path)
		if err == nil {
			periods, err = parseStatement(ctx, text, source, opts.Parser, opts.ParserMinRows)
		}
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: load %s", path)
	}

	zap.L().Info("ingest: loaded periods",
		zap.String("path", path),
		zap.String("source", string(source)),
		zap.Int("periods", len(periods)),
	)
	return periods, nil
}

func loadCSV(path string, headerRow int, source model.Source) ([]model.RawPeriod, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv: open file")
	}
	defer f.Close() //nolint:errcheck

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return FromRows(rows, headerRow, source)
}

func loadJSON(path string, source model.Source) ([]model.RawPeriod, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "json: open file")
	}
	defer f.Close() //nolint:errcheck

	return ReadJSON(f, source)
}
