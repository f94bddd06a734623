package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	ServiceName string     `env:"SERVICE_NAME" envDefault:"community-service"`

	Database DatabaseConfig `envPrefix:"DB_"`
	RedisURL string         `env:"REDIS_URL"`

	Kafka   KafkaConfig   `envPrefix:"KAFKA_"`
	Casdoor CasdoorConfig `envPrefix:"CASDOOR_"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	DefaultPageSize int      `env:"DEFAULT_PAGE_SIZE" envDefault:"50"`
	MaxPageSize     int      `env:"MAX_PAGE_SIZE" envDefault:"100"`
	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type DatabaseConfig struct {
	URL             string        `env:"URL,required"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

type KafkaConfig struct {
	Brokers              []string `env:"BROKERS" envSeparator:","`
	ConsumerGroup        string   `env:"CONSUMER_GROUP" envDefault:"community-service"`
	LessonCompletedTopic string   `env:"LESSON_COMPLETED_TOPIC" envDefault:"lms.lesson_completed"`
	DomainEventsTopic    string   `env:"DOMAIN_EVENTS_TOPIC" envDefault:"community.events"`
}

// Enabled reports whether a broker list was configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type CasdoorConfig struct {
	Endpoint     string `env:"ENDPOINT"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Cert         string `env:"CERTIFICATE"`
	Organization string `env:"ORGANIZATION"`
	Application  string `env:"APPLICATION"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE (%d) exceeds MAX_PAGE_SIZE (%d)", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}
