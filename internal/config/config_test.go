package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "reconcile.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.Burst)
	assert.Equal(t, 10000, cfg.Server.CacheEntries)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "pdftotext", cfg.OCR.PdfToTextPath)
	assert.Equal(t, "pdftotext", cfg.OCR.Provider)
	assert.Equal(t, 40, cfg.OCR.MinTextRunes)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrent)
	assert.Equal(t, "lines", cfg.Ingest.Parser)
	assert.Equal(t, 2, cfg.Ingest.LLMMinRows)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.InDelta(t, 0.30, cfg.Compare.MinScore, 0.001)
	assert.InDelta(t, 0.50, cfg.Compare.MatchScore, 0.001)
	assert.InDelta(t, 0.40, cfg.Compare.Weights.Company, 0.001)
	assert.InDelta(t, 0.35, cfg.Compare.Weights.Temporal, 0.001)
	assert.InDelta(t, 0.25, cfg.Compare.Weights.Duration, 0.001)
	assert.InDelta(t, 0.25, cfg.Compare.CompanyWeights.Edit, 0.001)
	assert.InDelta(t, 0.05, cfg.Compare.CompanyWeights.Phonetic, 0.001)
	assert.Equal(t, 90, cfg.Compare.ShortPeriodDays)
	assert.Equal(t, 365, cfg.Compare.LongPeriodDays)
	assert.Equal(t, DefaultCompareConfig(), cfg.Compare)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/reconcile
log:
  level: debug
  format: console
compare:
  min_score: 0.4
  match_score: 0.6
ingest:
  sheet_name: Vinculos
  header_row: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.4, cfg.Compare.MinScore, 0.001)
	assert.InDelta(t, 0.6, cfg.Compare.MatchScore, 0.001)
	assert.Equal(t, "Vinculos", cfg.Ingest.SheetName)
	assert.Equal(t, 2, cfg.Ingest.HeaderRow)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.40, cfg.Compare.Weights.Company, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RECONCILE_STORE_DRIVER", "postgres")
	t.Setenv("RECONCILE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("RECONCILE_SERVER_PORT", "3000")
	t.Setenv("RECONCILE_COMPARE_MIN_SCORE", "0.35")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 0.35, cfg.Compare.MinScore, 0.001)
}

func TestLoadRejectsInvalidCompare(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
compare:
  weights:
    company: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights should sum to 1")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestValidateCompare_Defaults(t *testing.T) {
	assert.NoError(t, ValidateCompare(DefaultCompareConfig()))
}

func TestValidateCompare_ThresholdOrder(t *testing.T) {
	c := DefaultCompareConfig()
	c.MinScore = 0.6
	c.MatchScore = 0.5

	err := ValidateCompare(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match_score must be >= min_score")
}

func TestValidateCompare_NegativeWeight(t *testing.T) {
	c := DefaultCompareConfig()
	c.CompanyWeights.Phonetic = -0.05
	c.CompanyWeights.Edit = 0.35

	err := ValidateCompare(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company_weights.phonetic must be >= 0")
}

func TestValidateCompare_WeightSum(t *testing.T) {
	c := DefaultCompareConfig()
	c.Weights.Duration = 0.5

	err := ValidateCompare(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights should sum to 1, got 1.25")
}

func TestValidateCompare_ShiftTooLarge(t *testing.T) {
	c := DefaultCompareConfig()
	c.WeightShift = 0.5

	err := ValidateCompare(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight_shift")
}

func TestValidateCompare_PeriodBounds(t *testing.T) {
	c := DefaultCompareConfig()
	c.LongPeriodDays = 30

	err := ValidateCompare(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "long_period_days must be >= short_period_days")
}

func validDefaults() *Config {
	return &Config{
		Store:   StoreConfig{Driver: "sqlite", DatabaseURL: "reconcile.db"},
		Server:  ServerConfig{Port: 8080, RequestsPerSec: 5, Burst: 10},
		Compare: DefaultCompareConfig(),
	}
}

func TestValidate_Compare(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("compare"))
}

func TestValidate_ServeRequiresDatabase(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_ServeInvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" is not supported`)
}

func TestValidate_OCRProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.OCR.Provider = "mistral"

	err := cfg.Validate("compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr.mistral_api_key is required")

	cfg.OCR.MistralAPIKey = "key"
	assert.NoError(t, cfg.Validate("compare"))

	cfg.OCR.Provider = "tesseract"
	err = cfg.Validate("compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ocr.provider "tesseract" is not supported`)
}

func TestValidate_IngestParser(t *testing.T) {
	cfg := validDefaults()
	cfg.Ingest.Parser = "anthropic"

	err := cfg.Validate("compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-test"
	assert.NoError(t, cfg.Validate("compare"))

	cfg.Ingest.Parser = "regex"
	err = cfg.Validate("compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ingest.parser "regex" is not supported`)
}

func TestValidate_BatchConcurrency(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("compare"))

	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent must be > 0")

	cfg.Batch.MaxConcurrent = 2
	assert.NoError(t, cfg.Validate("batch"))
}
