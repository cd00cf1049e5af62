package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultModel is the Anthropic model used when none is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Vision     VisionConfig     `yaml:"vision" mapstructure:"vision"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// VisionConfig holds text recognition settings.
type VisionConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SaveDir     string `yaml:"save_dir" mapstructure:"save_dir"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// PricingConfig holds per-model token pricing (USD per million tokens).
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing.
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ThresholdsConfig configures the confidence gates that decide when a run
// escalates to model review.
type ThresholdsConfig struct {
	TokenMean       float64 `yaml:"token_mean" mapstructure:"token_mean"`
	BlockMean       float64 `yaml:"block_mean" mapstructure:"block_mean"`
	LowToken        float64 `yaml:"low_token" mapstructure:"low_token"`
	LowTokenRatio   float64 `yaml:"low_token_ratio" mapstructure:"low_token_ratio"`
	ForceEscalation bool    `yaml:"force_escalation" mapstructure:"force_escalation"`
}

// SearchConfig configures the candidate neighborhood around a field anchor.
type SearchConfig struct {
	MaxScanTokens   int     `yaml:"max_scan_tokens" mapstructure:"max_scan_tokens"`
	MaxGeomDistance float64 `yaml:"max_geom_distance" mapstructure:"max_geom_distance"`
	IndexWeight     float64 `yaml:"index_weight" mapstructure:"index_weight"`
	GeomWeight      float64 `yaml:"geom_weight" mapstructure:"geom_weight"`
}

// SchemaConfig points at optional layout-specific keyword overrides.
type SchemaConfig struct {
	OverridesPath string `yaml:"overrides_path" mapstructure:"overrides_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the extraction HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "extract.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("vision.base_url", "https://vision.googleapis.com")
	v.SetDefault("vision.timeout_secs", 60)
	v.SetDefault("anthropic.model", DefaultModel)
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.requests_per_sec", 1.0)
	v.SetDefault("thresholds.token_mean", 0.85)
	v.SetDefault("thresholds.block_mean", 0.85)
	v.SetDefault("thresholds.low_token", 0.80)
	v.SetDefault("thresholds.low_token_ratio", 0.20)
	v.SetDefault("search.max_scan_tokens", 48)
	v.SetDefault("search.max_geom_distance", 800)
	v.SetDefault("search.index_weight", 1.0)
	v.SetDefault("search.geom_weight", 0.02)

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

// Validate checks the settings a mode depends on before any work starts.
// Modes: "extract", "batch", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "extract":
	case "batch":
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 32 {
			problems = append(problems, "batch.max_concurrent must be between 1 and 32")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	for name, v := range map[string]float64{
		"thresholds.token_mean":      c.Thresholds.TokenMean,
		"thresholds.block_mean":      c.Thresholds.BlockMean,
		"thresholds.low_token":       c.Thresholds.LowToken,
		"thresholds.low_token_ratio": c.Thresholds.LowTokenRatio,
	} {
		if v < 0 || v > 1 {
			problems = append(problems, name+" must be between 0 and 1")
		}
	}
	if c.Search.MaxScanTokens < 1 {
		problems = append(problems, "search.max_scan_tokens must be >= 1")
	}
	if c.Search.IndexWeight < 0 || c.Search.GeomWeight < 0 {
		problems = append(problems, "search weights must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
