// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Summarizer, Detector,
// Generator, Pipeline, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	RPC        RPCConfig        `yaml:"rpc"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Redaction  RedactionConfig  `yaml:"redaction"`
	Detector   DetectorConfig   `yaml:"detector"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Extract    ExtractConfig    `yaml:"extract"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// RPCConfig holds the internal JSON-over-TCP listener settings.
type RPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentSubmitted string `yaml:"documentSubmitted"`
	DocumentProcessed string `yaml:"documentProcessed"`
	PipelineEvents    string `yaml:"pipelineEvents"`
}

// RedisConfig holds Redis connection and result-caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SummarizerConfig controls the extractive and generative strategies.
type SummarizerConfig struct {
	MaxSentences       int `yaml:"maxSentences"`
	GenerativeMinWords int `yaml:"generativeMinWords"`
	// MaxKeyPoints is the number of key points attached to each result;
	// zero disables them.
	MaxKeyPoints      int `yaml:"maxKeyPoints"`
	RelevanceMaxTerms int `yaml:"relevanceMaxTerms"`
}

// RedactionConfig selects the scrub algorithm.
type RedactionConfig struct {
	// Mode is "span" (offset-based) or "text" (replace-all on the mutated string).
	Mode string `yaml:"mode"`
}

// BreakerConfig mirrors resilience.CircuitBreakerConfig in YAML form.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// DetectorConfig describes the PHI entity-tagging service.
type DetectorConfig struct {
	Provider  string        `yaml:"provider"`
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"apiKey"`
	Threshold float64       `yaml:"threshold"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// GeneratorConfig describes the generative summarization backend.
type GeneratorConfig struct {
	Provider string        `yaml:"provider"`
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

// PipelineConfig controls document-level parallelism.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// ExtractConfig configures document text extraction for batch runs.
type ExtractConfig struct {
	// UnidocLicenseKey is the metered unipdf key; PDFs cannot be read without it.
	UnidocLicenseKey string        `yaml:"unidocLicenseKey"`
	WatchDebounce    time.Duration `yaml:"watchDebounce"`
}

// AuthConfig toggles API-key authentication on the HTTP API.
type AuthConfig struct {
	Enabled     bool          `yaml:"enabled"`
	RateWindow  time.Duration `yaml:"rateWindow"`
	DefaultRole string        `yaml:"defaultRole"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), loads a .env file from the
// working directory when present, and applies environment-variable
// overrides. Missing values fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
		RPC: RPCConfig{
			Enabled: false,
			Addr:    ":9000",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "mediscrub",
			User:            "mediscrub",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "mediscrub-worker",
			Topics: KafkaTopics{
				DocumentSubmitted: "document-submitted",
				DocumentProcessed: "document-processed",
				PipelineEvents:    "pipeline-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Summarizer: SummarizerConfig{
			MaxSentences:       5,
			GenerativeMinWords: 100,
			MaxKeyPoints:       5,
			RelevanceMaxTerms:  1000,
		},
		Redaction: RedactionConfig{
			Mode: "span",
		},
		Detector: DetectorConfig{
			Provider:  "http",
			Endpoint:  "http://localhost:8500",
			Threshold: 0.5,
			Timeout:   30 * time.Second,
			Retries:   2,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			},
		},
		Generator: GeneratorConfig{
			Provider: "http",
			Endpoint: "http://localhost:8501",
			Model:    "t5-small",
			Timeout:  60 * time.Second,
			Breaker: BreakerConfig{
				FailureThreshold: 3,
				ResetTimeout:     60 * time.Second,
			},
		},
		Pipeline: PipelineConfig{
			Workers: 0,
		},
		Extract: ExtractConfig{
			WatchDebounce: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			Enabled:     true,
			RateWindow:  time.Minute,
			DefaultRole: "front_desk",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports configuration values that would make the pipeline
// misbehave rather than fail loudly at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Summarizer.MaxSentences < 1 {
		errs = append(errs, fmt.Errorf("summarizer.maxSentences must be >= 1, got %d", c.Summarizer.MaxSentences))
	}
	if c.Summarizer.GenerativeMinWords < 0 {
		errs = append(errs, fmt.Errorf("summarizer.generativeMinWords must be >= 0, got %d", c.Summarizer.GenerativeMinWords))
	}
	if c.Summarizer.MaxKeyPoints < 0 {
		errs = append(errs, fmt.Errorf("summarizer.maxKeyPoints must be >= 0, got %d", c.Summarizer.MaxKeyPoints))
	}
	if c.Summarizer.RelevanceMaxTerms < 1 {
		errs = append(errs, fmt.Errorf("summarizer.relevanceMaxTerms must be >= 1, got %d", c.Summarizer.RelevanceMaxTerms))
	}
	switch c.Redaction.Mode {
	case "span", "text":
	default:
		errs = append(errs, fmt.Errorf("redaction.mode must be span or text, got %q", c.Redaction.Mode))
	}
	switch c.Detector.Provider {
	case "http", "pattern", "none":
	default:
		errs = append(errs, fmt.Errorf("detector.provider %q is not supported", c.Detector.Provider))
	}
	switch c.Generator.Provider {
	case "http", "gemini", "ollama", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("generator.provider %q is not supported", c.Generator.Provider))
	}
	if c.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be >= 0, got %d", c.Pipeline.Workers))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads MS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("MS_SERVER_PORT", &cfg.Server.Port)
	setBool("MS_RPC_ENABLED", &cfg.RPC.Enabled)
	setString("MS_RPC_ADDR", &cfg.RPC.Addr)
	setString("MS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("MS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("MS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("MS_POSTGRES_USER", &cfg.Postgres.User)
	setString("MS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("MS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("MS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("MS_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("MS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("MS_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("MS_SUMMARIZER_MAX_SENTENCES", &cfg.Summarizer.MaxSentences)
	setString("MS_REDACTION_MODE", &cfg.Redaction.Mode)
	setString("MS_DETECTOR_PROVIDER", &cfg.Detector.Provider)
	setString("MS_DETECTOR_ENDPOINT", &cfg.Detector.Endpoint)
	setString("MS_DETECTOR_API_KEY", &cfg.Detector.APIKey)
	setString("MS_GENERATOR_PROVIDER", &cfg.Generator.Provider)
	setString("MS_GENERATOR_ENDPOINT", &cfg.Generator.Endpoint)
	setString("MS_GENERATOR_MODEL", &cfg.Generator.Model)
	setString("MS_GENERATOR_API_KEY", &cfg.Generator.APIKey)
	setInt("MS_PIPELINE_WORKERS", &cfg.Pipeline.Workers)
	setString("UNIDOC_LICENSE_KEY", &cfg.Extract.UnidocLicenseKey)
	setBool("MS_AUTH_ENABLED", &cfg.Auth.Enabled)
	setString("MS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("MS_LOGGING_FORMAT", &cfg.Logging.Format)
	setInt("MS_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
