package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"inkpress"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"inkpress"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	WordPressURL   string `envconfig:"WORDPRESS_URL"`
	WordPressToken string `envconfig:"WORDPRESS_TOKEN"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Worker pools
	GenerationConcurrency   int `envconfig:"GENERATION_CONCURRENCY" default:"2"`
	GenerationMaxPerWindow  int `envconfig:"GENERATION_MAX_PER_WINDOW" default:"10"`
	GenerationWindowSeconds int `envconfig:"GENERATION_WINDOW_SECONDS" default:"60"`
	PublishingConcurrency   int `envconfig:"PUBLISHING_CONCURRENCY" default:"1"`
	PublishingMaxPerWindow  int `envconfig:"PUBLISHING_MAX_PER_WINDOW" default:"30"`
	PublishingWindowSeconds int `envconfig:"PUBLISHING_WINDOW_SECONDS" default:"60"`

	// Retry policy
	MaxAttempts       int `envconfig:"MAX_ATTEMPTS" default:"3"`
	RetryBaseDelayMS  int `envconfig:"RETRY_BASE_DELAY_MS" default:"1000"`
	RetryMaxDelayMS   int `envconfig:"RETRY_MAX_DELAY_MS" default:"60000"`
	PollIntervalMS    int `envconfig:"POLL_INTERVAL_MS" default:"250"`
	RemoteTimeoutSecs int `envconfig:"REMOTE_TIMEOUT_SECONDS" default:"120"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.GenerationConcurrency < 1 || c.PublishingConcurrency < 1 {
		return fmt.Errorf("%w: pool concurrency must be at least 1", ErrMissingRequired)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: MAX_ATTEMPTS must be at least 1", ErrMissingRequired)
	}
	return nil
}
