package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/imagegate/internal/fusion"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "imagegate.db", cfg.Hash.CorpusPath)
	assert.InDelta(t, 0.85, cfg.Hash.MatchThreshold, 0.001)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Detection.Model)
	assert.Equal(t, 50, cfg.Detection.RequestsPerMinute)
	assert.Equal(t, 30, cfg.Detection.TimeoutSecs)
	assert.Equal(t, "similarity", cfg.Fusion.Profile)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
server:
  port: 9090
log:
  level: debug
  format: console
hash:
  corpus_path: /var/lib/imagegate/corpus.db
  match_threshold: 0.9
fusion:
  profile: legacy
batch:
  concurrency: 8
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/imagegate/corpus.db", cfg.Hash.CorpusPath)
	assert.InDelta(t, 0.9, cfg.Hash.MatchThreshold, 0.001)
	assert.Equal(t, "legacy", cfg.Fusion.Profile)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Detection.RequestsPerMinute)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("IMAGEGATE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("IMAGEGATE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestFusionSettings_Profiles(t *testing.T) {
	cfg := &Config{Fusion: FusionConfig{Profile: "similarity"}}
	got, err := cfg.FusionSettings()
	require.NoError(t, err)
	assert.Equal(t, fusion.SimilarityProfile(), got)

	cfg.Fusion.Profile = "legacy"
	got, err = cfg.FusionSettings()
	require.NoError(t, err)
	assert.Equal(t, fusion.LegacyProfile(), got)

	cfg.Fusion.Profile = ""
	got, err = cfg.FusionSettings()
	require.NoError(t, err)
	assert.Equal(t, fusion.SimilarityProfile(), got)

	cfg.Fusion.Profile = "bogus"
	_, err = cfg.FusionSettings()
	assert.Error(t, err)
}

func TestFusionSettings_Overrides(t *testing.T) {
	wh := 0.5
	ct := 0.8
	cfg := &Config{Fusion: FusionConfig{
		Profile:             "similarity",
		WeightHash:          &wh,
		ConfidenceThreshold: &ct,
	}}

	got, err := cfg.FusionSettings()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.WeightHash, 0.001)
	assert.InDelta(t, 0.8, got.ConfidenceThreshold, 0.001)
	// Unset overrides keep profile values
	assert.InDelta(t, 0.4, got.WeightMetadata, 0.001)
	assert.InDelta(t, 0.3, got.WeightDetection, 0.001)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadBytes = 32 << 20
	cfg.Hash.MatchThreshold = 0.85
	cfg.Batch.Concurrency = 4
	return cfg
}

func TestValidateServe_OK(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateDetect_RequiresKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("detect")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "detection.anthropic_key is required")

	cfg.Detection.AnthropicKey = "sk-ant-key"
	cfg.Detection.Model = "claude-haiku-4-5-20251001"
	assert.NoError(t, cfg.Validate("detect"))
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 32")

	cfg.Batch.Concurrency = 33
	err = cfg.Validate("analyze")
	assert.Error(t, err)

	cfg.Batch.Concurrency = 32
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateThresholds(t *testing.T) {
	cfg := validDefaults()

	cfg.Hash.MatchThreshold = 1.5
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hash.match_threshold")

	cfg.Hash.MatchThreshold = 0.85
	bad := 0.5
	cfg.Fusion.ConfidenceThreshold = &bad
	err = cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fusion.confidence_threshold")

	neg := -0.1
	cfg.Fusion.ConfidenceThreshold = nil
	cfg.Fusion.WeightMetadata = &neg
	err = cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fusion weights must be >= 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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
