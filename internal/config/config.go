// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr     string `envconfig:"ADDR" default:":8080"`
	AppEnv   string `envconfig:"APP_ENV" default:"production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DSN       string        `envconfig:"DB_DSN" required:"true"`
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	UploadStore   string `envconfig:"UPLOAD_STORE" default:"redis"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:"localhost:9000"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`

	MaxChunkSize   int64         `envconfig:"MAX_CHUNK_SIZE" default:"5242880"`
	MaxFileSize    int64         `envconfig:"MAX_FILE_SIZE" default:"2147483648"`
	DownloadURLTTL time.Duration `envconfig:"DOWNLOAD_URL_TTL" default:"1h"`
	SendBuffer     int           `envconfig:"SEND_BUFFER" default:"256"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Development reports whether internal error causes may be exposed to clients.
func (c *Config) Development() bool { return c.AppEnv == "development" }

func (c *Config) validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("MAX_CHUNK_SIZE must be positive, got %d", c.MaxChunkSize)
	}
	if c.MaxFileSize < c.MaxChunkSize {
		return fmt.Errorf("MAX_FILE_SIZE (%d) must be at least MAX_CHUNK_SIZE (%d)", c.MaxFileSize, c.MaxChunkSize)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	switch c.UploadStore {
	case "redis", "memory":
	default:
		return fmt.Errorf("UPLOAD_STORE must be redis or memory, got %q", c.UploadStore)
	}
	return nil
}
