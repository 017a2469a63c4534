package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/pkg/anthropic"
)

type stubClient struct {
	text  string
	err   error
	calls int
	req   anthropic.MessageRequest
}

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.calls++
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}, nil
}

const twoPeriods = "```json\n" + `{"periods":[
  {"company":"ACME COMERCIO LTDA","role":"Vendedor","start_date":"01/01/2020","end_date":"31/12/2020"},
  {"company":"GLOBEX S.A.","start_date":"02/2021","end_date":""},
  {"company":"","start_date":"01/01/2019"}
]}` + "\n```"

func TestLLMParser_ParsePeriods(t *testing.T) {
	client := &stubClient{text: twoPeriods}
	p := NewLLMParser(client, "claude-haiku-4-5-20251001", 0)

	got, err := p.ParsePeriods(context.Background(), "statement text", model.SourceB)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.RawPeriod{
		Company:   "ACME COMERCIO LTDA",
		Role:      "Vendedor",
		StartDate: "01/01/2020",
		EndDate:   "31/12/2020",
		Source:    model.SourceB,
	}, got[0])
	assert.Equal(t, "02/2021", got[1].StartDate)
	assert.Empty(t, got[1].EndDate)

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, int64(defaultLLMMaxTokens), client.req.MaxTokens)
	require.Len(t, client.req.System, 1)
	assert.NotNil(t, client.req.System[0].CacheControl)
	require.NotNil(t, client.req.Temperature)
	assert.Zero(t, *client.req.Temperature)
	assert.Equal(t, "statement text", client.req.Messages[0].Content)
}

func TestLLMParser_EmptyTextSkipsCall(t *testing.T) {
	client := &stubClient{}
	got, err := NewLLMParser(client, "m", 1024).ParsePeriods(context.Background(), "  \n ", model.SourceB)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, client.calls)
}

func TestLLMParser_Errors(t *testing.T) {
	_, err := NewLLMParser(&stubClient{err: errors.New("overloaded")}, "m", 0).
		ParsePeriods(context.Background(), "text", model.SourceB)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: llm parse statement")

	_, err = NewLLMParser(&stubClient{text: "no periods here"}, "m", 0).
		ParsePeriods(context.Background(), "text", model.SourceB)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: decode llm periods")
}

type stubParser struct {
	periods []model.RawPeriod
	err     error
	calls   int
}

func (s *stubParser) ParsePeriods(_ context.Context, _ string, _ model.Source) ([]model.RawPeriod, error) {
	s.calls++
	return s.periods, s.err
}

func llmRows(n int) []model.RawPeriod {
	out := make([]model.RawPeriod, n)
	for i := range out {
		out[i] = model.RawPeriod{Company: "EMPRESA", StartDate: "01/01/2020", Source: model.SourceB}
	}
	return out
}

func TestParseStatement(t *testing.T) {
	ctx := context.Background()
	oneLine := "1 ACME LTDA 01/01/2020 31/12/2020"
	twoLines := oneLine + "\n2 GLOBEX 01/02/2021"

	t.Run("no parser", func(t *testing.T) {
		got, err := parseStatement(ctx, oneLine, model.SourceB, nil, 5)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("enough line rows", func(t *testing.T) {
		p := &stubParser{periods: llmRows(4)}
		got, err := parseStatement(ctx, twoLines, model.SourceB, p, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Zero(t, p.calls)
	})

	t.Run("few line rows", func(t *testing.T) {
		p := &stubParser{periods: llmRows(3)}
		got, err := parseStatement(ctx, oneLine, model.SourceB, p, 2)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.Equal(t, 1, p.calls)
	})

	t.Run("parser finds fewer", func(t *testing.T) {
		p := &stubParser{periods: []model.RawPeriod{}}
		got, err := parseStatement(ctx, oneLine, model.SourceB, p, 2)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ACME LTDA", got[0].Company)
	})

	t.Run("zero min rows still runs on empty output", func(t *testing.T) {
		p := &stubParser{periods: llmRows(1)}
		got, err := parseStatement(ctx, "scanned page", model.SourceB, p, 0)
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, 1, p.calls)
	})

	t.Run("parser error keeps line rows", func(t *testing.T) {
		p := &stubParser{err: errors.New("rate limited")}
		got, err := parseStatement(ctx, oneLine, model.SourceB, p, 2)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("parser error without line rows", func(t *testing.T) {
		p := &stubParser{err: errors.New("rate limited")}
		_, err := parseStatement(ctx, "scanned page", model.SourceB, p, 2)
		require.Error(t, err)
	})
}

func TestLoadFile_PDFFallsBackToParser(t *testing.T) {
	pdfPath := writeFile(t, "scan.pdf", []byte("%PDF-1.4"))
	client := &stubClient{text: twoPeriods}

	opts := OptionsFromConfig(config.IngestConfig{LLMMinRows: 2}, stubExtractor{text: "VINCULOS\nACME COMERCIO LTDA admissao 01/01/2020"})
	opts.Parser = NewLLMParser(client, "claude-haiku-4-5-20251001", 0)

	got, err := LoadFile(context.Background(), pdfPath, model.SourceB, opts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "GLOBEX S.A.", got[1].Company)
	assert.Equal(t, 1, client.calls)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"periods":[]}`, cleanJSON("```json\n{\"periods\":[]}\n```"))
	assert.Equal(t, `{"periods":[]}`, cleanJSON("```\n{\"periods\":[]}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`Here you go: {"a":1} done`))
	assert.Equal(t, "plain", cleanJSON("  plain  "))
}
