// Package ocr turns benefits-statement PDFs into plain text for the
// period parser.
package ocr

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/config"
)

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// NewExtractor creates an Extractor for cfg.Provider.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "pdftotext", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralAPIKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralAPIKey, cfg.MistralModel), nil
	case "auto":
		fallback := Extractor(nil)
		if cfg.MistralAPIKey != "" {
			fallback = NewMistralOCR(cfg.MistralAPIKey, cfg.MistralModel)
		}
		return &Auto{
			Primary:  NewPdfToText(cfg.PdfToTextPath),
			Fallback: fallback,
			MinRunes: cfg.MinTextRunes,
		}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Auto runs Primary and switches to Fallback when the primary output looks
// like a scanned document without a text layer.
type Auto struct {
	Primary  Extractor
	Fallback Extractor
	// MinRunes is the number of letters and digits below which the primary
	// output is considered empty.
	MinRunes int
}

// ExtractText implements Extractor.
func (a *Auto) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	text, err := a.Primary.ExtractText(ctx, pdfPath)
	if err == nil && textRunes(text) >= a.MinRunes {
		return text, nil
	}
	if a.Fallback == nil {
		if err != nil {
			return "", err
		}
		return text, nil
	}

	zap.L().Info("ocr: primary extractor produced no usable text, using fallback",
		zap.String("path", pdfPath),
		zap.Error(err),
	)
	return a.Fallback.ExtractText(ctx, pdfPath)
}

func textRunes(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// Clean drops form feeds and trailing spaces left by layout-preserving
// extraction, and removes blank lines.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\f", "\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
