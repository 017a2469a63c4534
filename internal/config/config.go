package config

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Compare   CompareConfig   `yaml:"compare" mapstructure:"compare"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RequestsPerSec float64  `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	CacheEntries   int      `yaml:"cache_entries" mapstructure:"cache_entries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// IngestConfig configures how period lists are read from files.
type IngestConfig struct {
	SheetName  string `yaml:"sheet_name" mapstructure:"sheet_name"`
	SheetIndex int    `yaml:"sheet_index" mapstructure:"sheet_index"`
	// HeaderRow is the 0-based row holding column headers in spreadsheets
	// and CSVs. Rows above it are ignored.
	HeaderRow int `yaml:"header_row" mapstructure:"header_row"`
	// Parser reads benefits statement text: "lines" (the built-in line
	// heuristic) or "anthropic" (line heuristic, then Claude when it finds
	// fewer than LLMMinRows periods).
	Parser     string `yaml:"parser" mapstructure:"parser"`
	LLMMinRows int    `yaml:"llm_min_rows" mapstructure:"llm_min_rows"`
}

// AnthropicConfig configures the Claude client behind the anthropic parser.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OCRConfig configures PDF text extraction for benefits documents.
// Provider is "pdftotext", "mistral" or "auto" (pdftotext, falling back to
// Mistral when the PDF has no text layer).
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralAPIKey string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
	MinTextRunes  int    `yaml:"min_text_runes" mapstructure:"min_text_runes"`
}

// BatchConfig configures manifest-driven batch comparisons.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ScoreWeights are the composite-score weights for the three sub-scores.
type ScoreWeights struct {
	Company  float64 `yaml:"company" mapstructure:"company"`
	Temporal float64 `yaml:"temporal" mapstructure:"temporal"`
	Duration float64 `yaml:"duration" mapstructure:"duration"`
}

// Sum returns the total of the three weights.
func (w ScoreWeights) Sum() float64 {
	return w.Company + w.Temporal + w.Duration
}

// CompanyWeights blend the text metrics behind the company sub-score.
type CompanyWeights struct {
	Edit         float64 `yaml:"edit" mapstructure:"edit"`
	Jaro         float64 `yaml:"jaro" mapstructure:"jaro"`
	Jaccard      float64 `yaml:"jaccard" mapstructure:"jaccard"`
	Keyword      float64 `yaml:"keyword" mapstructure:"keyword"`
	Abbreviation float64 `yaml:"abbreviation" mapstructure:"abbreviation"`
	Phonetic     float64 `yaml:"phonetic" mapstructure:"phonetic"`
}

// Sum returns the total of the metric weights.
func (w CompanyWeights) Sum() float64 {
	return w.Edit + w.Jaro + w.Jaccard + w.Keyword + w.Abbreviation + w.Phonetic
}

// CompareConfig tunes the reconciliation engine.
type CompareConfig struct {
	// MinScore is the composite score a pairing needs to be accepted at all.
	MinScore float64 `yaml:"min_score" mapstructure:"min_score"`
	// MatchScore promotes an accepted pairing from partial match to match.
	MatchScore      float64        `yaml:"match_score" mapstructure:"match_score"`
	Weights         ScoreWeights   `yaml:"weights" mapstructure:"weights"`
	CompanyWeights  CompanyWeights `yaml:"company_weights" mapstructure:"company_weights"`
	ShortPeriodDays int            `yaml:"short_period_days" mapstructure:"short_period_days"`
	LongPeriodDays  int            `yaml:"long_period_days" mapstructure:"long_period_days"`
	WeightShift     float64        `yaml:"weight_shift" mapstructure:"weight_shift"`
}

// DefaultCompareConfig returns the engine's default tuning.
// Both weight tables sum to 1.
func DefaultCompareConfig() CompareConfig {
	return CompareConfig{
		MinScore:   0.30,
		MatchScore: 0.50,
		Weights: ScoreWeights{
			Company:  0.40,
			Temporal: 0.35,
			Duration: 0.25,
		},
		CompanyWeights: CompanyWeights{
			Edit:         0.25,
			Jaro:         0.25,
			Jaccard:      0.20,
			Keyword:      0.15,
			Abbreviation: 0.10,
			Phonetic:     0.05,
		},
		ShortPeriodDays: 90,
		LongPeriodDays:  365,
		WeightShift:     0.10,
	}
}

// ValidateCompare checks that a CompareConfig is internally consistent.
func ValidateCompare(c CompareConfig) error {
	var errs []string

	if c.MinScore < 0 || c.MinScore > 1 {
		errs = append(errs, "min_score must be between 0 and 1")
	}
	if c.MatchScore < 0 || c.MatchScore > 1 {
		errs = append(errs, "match_score must be between 0 and 1")
	}
	if c.MatchScore < c.MinScore {
		errs = append(errs, "match_score must be >= min_score")
	}

	weights := map[string]float64{
		"weights.company":              c.Weights.Company,
		"weights.temporal":             c.Weights.Temporal,
		"weights.duration":             c.Weights.Duration,
		"company_weights.edit":         c.CompanyWeights.Edit,
		"company_weights.jaro":         c.CompanyWeights.Jaro,
		"company_weights.jaccard":      c.CompanyWeights.Jaccard,
		"company_weights.keyword":      c.CompanyWeights.Keyword,
		"company_weights.abbreviation": c.CompanyWeights.Abbreviation,
		"company_weights.phonetic":     c.CompanyWeights.Phonetic,
	}
	for _, name := range slices.Sorted(maps.Keys(weights)) {
		if weights[name] < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if sum := c.Weights.Sum(); math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.2f", sum))
	}
	if sum := c.CompanyWeights.Sum(); math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("company_weights should sum to 1, got %.2f", sum))
	}

	if c.WeightShift < 0 || c.WeightShift > c.Weights.Company || c.WeightShift > c.Weights.Temporal {
		errs = append(errs, "weight_shift must be >= 0 and no larger than the company and temporal weights")
	}
	if c.ShortPeriodDays < 0 {
		errs = append(errs, "short_period_days must be >= 0")
	}
	if c.LongPeriodDays < c.ShortPeriodDays {
		errs = append(errs, "long_period_days must be >= short_period_days")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: compare validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the fields a command mode depends on. Modes: "compare",
// "batch", "serve", "history".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (sqlite, postgres)", c.Store.Driver))
	}
	if (mode == "serve" || mode == "history") && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.RequestsPerSec <= 0 {
			errs = append(errs, "server.requests_per_sec must be > 0")
		}
	}
	if mode == "batch" && c.Batch.MaxConcurrent <= 0 {
		errs = append(errs, "batch.max_concurrent must be > 0")
	}
	switch c.OCR.Provider {
	case "", "pdftotext", "auto":
	case "mistral":
		if c.OCR.MistralAPIKey == "" {
			errs = append(errs, "ocr.mistral_api_key is required for the mistral provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("ocr.provider %q is not supported (pdftotext, mistral, auto)", c.OCR.Provider))
	}
	switch c.Ingest.Parser {
	case "", "lines":
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required for the anthropic parser")
		}
	default:
		errs = append(errs, fmt.Sprintf("ingest.parser %q is not supported (lines, anthropic)", c.Ingest.Parser))
	}
	if c.Ingest.HeaderRow < 0 {
		errs = append(errs, "ingest.header_row must be >= 0")
	}

	if err := ValidateCompare(c.Compare); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECONCILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	def := DefaultCompareConfig()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reconcile.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_sec", 5.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 5<<20)
	v.SetDefault("server.cache_entries", 10000)
	v.SetDefault("compare.min_score", def.MinScore)
	v.SetDefault("compare.match_score", def.MatchScore)
	v.SetDefault("compare.weights.company", def.Weights.Company)
	v.SetDefault("compare.weights.temporal", def.Weights.Temporal)
	v.SetDefault("compare.weights.duration", def.Weights.Duration)
	v.SetDefault("compare.company_weights.edit", def.CompanyWeights.Edit)
	v.SetDefault("compare.company_weights.jaro", def.CompanyWeights.Jaro)
	v.SetDefault("compare.company_weights.jaccard", def.CompanyWeights.Jaccard)
	v.SetDefault("compare.company_weights.keyword", def.CompanyWeights.Keyword)
	v.SetDefault("compare.company_weights.abbreviation", def.CompanyWeights.Abbreviation)
	v.SetDefault("compare.company_weights.phonetic", def.CompanyWeights.Phonetic)
	v.SetDefault("compare.short_period_days", def.ShortPeriodDays)
	v.SetDefault("compare.long_period_days", def.LongPeriodDays)
	v.SetDefault("compare.weight_shift", def.WeightShift)
	v.SetDefault("ingest.sheet_index", 0)
	v.SetDefault("ingest.header_row", 0)
	v.SetDefault("ingest.parser", "lines")
	v.SetDefault("ingest.llm_min_rows", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("ocr.provider", "pdftotext")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("ocr.min_text_runes", 40)
	v.SetDefault("batch.max_concurrent", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := ValidateCompare(cfg.Compare); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
