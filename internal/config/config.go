package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/imagegate/internal/fusion"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Hash      HashConfig      `yaml:"hash" mapstructure:"hash"`
	Metadata  MetadataConfig  `yaml:"metadata" mapstructure:"metadata"`
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`
	Fusion    FusionConfig    `yaml:"fusion" mapstructure:"fusion"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int   `yaml:"port" mapstructure:"port"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HashConfig configures the perceptual hash stage.
type HashConfig struct {
	CorpusPath     string  `yaml:"corpus_path" mapstructure:"corpus_path"`
	MatchThreshold float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
}

// MetadataConfig configures the metadata analysis stage.
type MetadataConfig struct {
	SignatureFile string   `yaml:"signature_file" mapstructure:"signature_file"`
	ExtraPatterns []string `yaml:"extra_patterns" mapstructure:"extra_patterns"`
}

// DetectionConfig configures the vision classifier stage.
type DetectionConfig struct {
	AnthropicKey      string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Model             string `yaml:"model" mapstructure:"model"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FusionConfig configures evidence weighting and verdict resolution.
// Profile selects a named weight set; explicit weights override it.
type FusionConfig struct {
	Profile             string   `yaml:"profile" mapstructure:"profile"`
	WeightHash          *float64 `yaml:"weight_hash" mapstructure:"weight_hash"`
	WeightMetadata      *float64 `yaml:"weight_metadata" mapstructure:"weight_metadata"`
	WeightDetection     *float64 `yaml:"weight_detection" mapstructure:"weight_detection"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IMAGEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("hash.corpus_path", "imagegate.db")
	v.SetDefault("hash.match_threshold", 0.85)
	v.SetDefault("detection.model", "claude-haiku-4-5-20251001")
	v.SetDefault("detection.requests_per_minute", 50)
	v.SetDefault("detection.timeout_secs", 30)
	v.SetDefault("fusion.profile", "similarity")
	v.SetDefault("batch.concurrency", 4)

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

	return &cfg, nil
}

// Validate checks the fields required for the given run mode. Modes are
// "analyze" (CLI, detection optional), "serve" (HTTP server), and
// "detect" (detection required).
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Hash.MatchThreshold >= 0 && c.Hash.MatchThreshold <= 1,
		"hash.match_threshold must be between 0 and 1")
	check(c.Batch.Concurrency >= 1 && c.Batch.Concurrency <= 32,
		"batch.concurrency must be between 1 and 32")
	if c.Fusion.ConfidenceThreshold != nil {
		t := *c.Fusion.ConfidenceThreshold
		check(t > 0.5 && t <= 1, "fusion.confidence_threshold must be in (0.5, 1]")
	}
	for _, w := range []*float64{c.Fusion.WeightHash, c.Fusion.WeightMetadata, c.Fusion.WeightDetection} {
		if w != nil && *w < 0 {
			problems = append(problems, "fusion weights must be >= 0")
			break
		}
	}

	switch mode {
	case "analyze":
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Server.MaxUploadBytes > 0, "server.max_upload_bytes must be > 0")
	case "detect":
		check(c.Detection.AnthropicKey != "", "detection.anthropic_key is required")
		check(c.Detection.Model != "", "detection.model is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// FusionSettings resolves the configured profile and overrides into a
// concrete fusion configuration.
func (c *Config) FusionSettings() (fusion.Config, error) {
	var base fusion.Config
	switch c.Fusion.Profile {
	case "", "similarity":
		base = fusion.SimilarityProfile()
	case "legacy":
		base = fusion.LegacyProfile()
	default:
		return fusion.Config{}, eris.Errorf("config: unknown fusion profile %q", c.Fusion.Profile)
	}

	if c.Fusion.WeightHash != nil {
		base.WeightHash = *c.Fusion.WeightHash
	}
	if c.Fusion.WeightMetadata != nil {
		base.WeightMetadata = *c.Fusion.WeightMetadata
	}
	if c.Fusion.WeightDetection != nil {
		base.WeightDetection = *c.Fusion.WeightDetection
	}
	if c.Fusion.ConfidenceThreshold != nil {
		base.ConfidenceThreshold = *c.Fusion.ConfidenceThreshold
	}

	return base, nil
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
