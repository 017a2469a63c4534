package ingest

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/pkg/anthropic"
)

const (
	defaultLLMMaxTokens = 4096
	// maxStatementRunes bounds the statement text sent in one request.
	maxStatementRunes = 60000
)

const statementPrompt = `You extract employment periods from the text of a Brazilian social security statement (CNIS) or a similar benefits document. The text was produced by OCR and may be noisy.

Return ONLY a JSON object of the form:
{"periods":[{"company":"...","role":"...","start_date":"...","end_date":"..."}]}

Rules:
- One entry per employment relationship, in document order.
- company is the employer name exactly as printed, without CNPJ/CEI/NIT numbers.
- start_date and end_date are copied as printed (for example 01/02/2015 or 02/2015). Leave end_date empty when the relationship has no end date.
- role is the occupation when printed, otherwise empty.
- Do not invent periods. Return {"periods":[]} when there are none.`

// PeriodParser turns statement text into periods. It backs up ParseText
// for layouts the line heuristic cannot read.
type PeriodParser interface {
	ParsePeriods(ctx context.Context, text string, source model.Source) ([]model.RawPeriod, error)
}

// LLMParser extracts periods from statement text with a Claude model.
type LLMParser struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLMParser creates an LLMParser. maxTokens <= 0 uses the default.
func NewLLMParser(client anthropic.Client, model string, maxTokens int64) *LLMParser {
	if maxTokens <= 0 {
		maxTokens = defaultLLMMaxTokens
	}
	return &LLMParser{client: client, model: model, maxTokens: maxTokens}
}

type llmPeriods struct {
	Periods []struct {
		Company   string `json:"company"`
		Role      string `json:"role"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	} `json:"periods"`
}

// ParsePeriods sends text to the model and decodes the returned periods.
// Entries without a company or start date are dropped.
func (p *LLMParser) ParsePeriods(ctx context.Context, text string, source model.Source) ([]model.RawPeriod, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []model.RawPeriod{}, nil
	}
	if r := []rune(text); len(r) > maxStatementRunes {
		text = string(r[:maxStatementRunes])
	}

	temp := 0.0
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      anthropic.CachedSystem(statementPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: text}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: llm parse statement")
	}
	resp.Usage.LogUsage(p.model, "statement_parse")

	var out llmPeriods
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &out); err != nil {
		return nil, eris.Wrap(err, "ingest: decode llm periods")
	}

	periods := make([]model.RawPeriod, 0, len(out.Periods))
	for _, e := range out.Periods {
		company := strings.TrimSpace(e.Company)
		start := strings.TrimSpace(e.StartDate)
		if company == "" || start == "" {
			continue
		}
		periods = append(periods, model.RawPeriod{
			Company:   company,
			Role:      strings.TrimSpace(e.Role),
			StartDate: start,
			EndDate:   strings.TrimSpace(e.EndDate),
			Source:    source,
		})
	}
	return periods, nil
}

// parseStatement runs the line heuristic and, when it finds fewer than
// minRows periods, asks parser for a better reading. The parser's result is
// kept only when it finds more periods.
func parseStatement(ctx context.Context, text string, source model.Source, parser PeriodParser, minRows int) ([]model.RawPeriod, error) {
	periods := ParseText(text, source)
	if parser == nil || len(periods) >= max(minRows, 1) {
		return periods, nil
	}

	llm, err := parser.ParsePeriods(ctx, text, source)
	if err != nil {
		if len(periods) == 0 {
			return nil, err
		}
		zap.L().Warn("ingest: statement parser failed, keeping line parser output",
			zap.Int("periods", len(periods)),
			zap.Error(err),
		)
		return periods, nil
	}
	if len(llm) <= len(periods) {
		return periods, nil
	}
	zap.L().Info("ingest: statement parsed by llm",
		zap.Int("line_periods", len(periods)),
		zap.Int("llm_periods", len(llm)),
	)
	return llm, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
