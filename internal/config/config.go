package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Social    SocialConfig    `yaml:"social" mapstructure:"social"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// IngestConfig configures the file upload boundary.
type IngestConfig struct {
	UploadDir      string `yaml:"upload_dir" mapstructure:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// AnalysisConfig configures prompt assembly for batch analysis.
type AnalysisConfig struct {
	MaxPerDocument     int   `yaml:"max_per_document" mapstructure:"max_per_document"`
	MaxTotal           int   `yaml:"max_total" mapstructure:"max_total"`
	MaxMultimodalBytes int64 `yaml:"max_multimodal_bytes" mapstructure:"max_multimodal_bytes"`
}

// SocialConfig configures the social-content acquisition layer.
type SocialConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	BearerToken       string  `yaml:"bearer_token" mapstructure:"bearer_token"`
	FetchIntervalMins int     `yaml:"fetch_interval_mins" mapstructure:"fetch_interval_mins"`
	PostsPerAccount   int     `yaml:"posts_per_account" mapstructure:"posts_per_account"`
	MinStoredPosts    int     `yaml:"min_stored_posts" mapstructure:"min_stored_posts"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	DisableSamples    bool    `yaml:"disable_samples" mapstructure:"disable_samples"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("DOCPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docpulse.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("ingest.upload_dir", "uploads")
	v.SetDefault("ingest.max_upload_bytes", 10*1024*1024)
	v.SetDefault("analysis.max_per_document", 20000)
	v.SetDefault("analysis.max_total", 40000)
	v.SetDefault("analysis.max_multimodal_bytes", 4*1024*1024)
	v.SetDefault("social.fetch_interval_mins", 30)
	v.SetDefault("social.posts_per_account", 10)
	v.SetDefault("social.min_stored_posts", 25)
	v.SetDefault("social.rate_per_sec", 1.0)

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
