// Package config handles configuration loading for openrank.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "OPENRANK"

// Config represents the complete application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	Ranking RankingConfig `mapstructure:"ranking" yaml:"ranking"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary      string        `mapstructure:"primary"       yaml:"primary"       validate:"oneof=openai ollama gemini anthropic"`
	Model        string        `mapstructure:"model"         yaml:"model"`
	OpenAIKey    string        `mapstructure:"openai_key"    yaml:"openai_key"`
	GeminiKey    string        `mapstructure:"gemini_key"    yaml:"gemini_key"`
	AnthropicKey string        `mapstructure:"anthropic_key" yaml:"anthropic_key"`
	OllamaURL    string        `mapstructure:"ollama_url"    yaml:"ollama_url"    validate:"omitempty,url"`
	Temperature  float64       `mapstructure:"temperature"   yaml:"temperature"   validate:"gte=0,lte=2"`
	MaxTokens    int           `mapstructure:"max_tokens"    yaml:"max_tokens"    validate:"gte=0"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"  yaml:"call_timeout"  validate:"gt=0"`
	MaxRetries   int           `mapstructure:"max_retries"   yaml:"max_retries"   validate:"gte=0,lte=10"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"   yaml:"retry_delay"   validate:"gte=0"`
	RateLimit    float64       `mapstructure:"rate_limit"    yaml:"rate_limit"    validate:"gte=0"` // requests/sec, 0 = unlimited
	Burst        int           `mapstructure:"burst"         yaml:"burst"         validate:"gte=0"`
}

// RankingConfig holds ranking engine settings.
type RankingConfig struct {
	DefaultLimit    int     `mapstructure:"default_limit"     yaml:"default_limit"     validate:"gt=0"`
	MaxAttempts     int     `mapstructure:"max_attempts"      yaml:"max_attempts"      validate:"gt=0,lte=10"`
	WaveSize        int     `mapstructure:"wave_size"         yaml:"wave_size"         validate:"gt=0"`
	MaxCandidates   int     `mapstructure:"max_candidates"    yaml:"max_candidates"    validate:"gt=0"`
	MinOverallScore float64 `mapstructure:"min_overall_score" yaml:"min_overall_score" validate:"gte=0,lte=100"`
	Seed            int64   `mapstructure:"seed"              yaml:"seed"` // 0 = time-based
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host           string        `mapstructure:"host"            yaml:"host"`
	Port           int           `mapstructure:"port"            yaml:"port"            validate:"gt=0,lte=65535"`
	CORSOrigins    []string      `mapstructure:"cors_origins"    yaml:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.openrank/config.yaml (home directory)
//  3. /etc/openrank/config.yaml (system)
//
// Environment variables override config file values, and a .env file in
// the working directory is loaded first if present.
// Format: OPENRANK_<SECTION>_<KEY>, e.g., OPENRANK_LLM_OPENAI_KEY
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".openrank"))
	v.AddConfigPath("/etc/openrank")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.ollama_url", "")
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.gemini_key", "")
	v.SetDefault("llm.anthropic_key", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.call_timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.rate_limit", 0)
	v.SetDefault("llm.burst", 1)

	// Ranking defaults
	v.SetDefault("ranking.default_limit", 10)
	v.SetDefault("ranking.max_attempts", 3)
	v.SetDefault("ranking.wave_size", 10)
	v.SetDefault("ranking.max_candidates", 50)
	v.SetDefault("ranking.min_overall_score", 50)
	v.SetDefault("ranking.seed", 0)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.request_timeout", "10m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv(EnvPrefix + "_LLM_GEMINI_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if key := os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
