package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"studio-pro/internal/domain"
)

type Config struct {
	App            AppConfig            `yaml:"app"`
	HTTP           HTTPConfig           `yaml:"http"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Payments       PaymentsConfig       `yaml:"payments"`
	Pricing        map[string]float64   `yaml:"pricing"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Logging        LoggingConfig        `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MetricsEnabled bool     `yaml:"metrics_enabled"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	Schema         string `yaml:"schema"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

// RedisConfig configures the reconciliation lease. An empty address disables it.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PaymentsConfig struct {
	Currency          string        `yaml:"currency"`
	MaxAmount         float64       `yaml:"max_amount"`
	AdvancePercentage int           `yaml:"advance_percentage"`
	FailureRate       float64       `yaml:"failure_rate"`
	CardLatency       time.Duration `yaml:"card_latency"`
	AltLatency        time.Duration `yaml:"alt_latency"`
}

type ReconciliationConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Grace     time.Duration `yaml:"grace"`
	BatchSize int           `yaml:"batch_size"`
	LeaseTTL  time.Duration `yaml:"lease_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		App:  AppConfig{Name: "studio-pro", Environment: "development"},
		HTTP: HTTPConfig{
			Addr: ":5000",
			AllowedOrigins: []string{
				"http://127.0.0.1:5500",
				"http://localhost:5500",
				"http://127.0.0.1:3000",
				"http://localhost:3000",
			},
			MetricsEnabled: true,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			DBName:         "studiopro",
			Schema:         "public",
			SSLMode:        "disable",
			MaxConnections: 20,
		},
		Redis: RedisConfig{PoolSize: 10},
		Payments: PaymentsConfig{
			Currency:          domain.DefaultCurrency,
			MaxAmount:         10000,
			AdvancePercentage: domain.DefaultAdvancePercentage,
			FailureRate:       0.05,
			CardLatency:       2 * time.Second,
			AltLatency:        1500 * time.Millisecond,
		},
		Pricing: map[string]float64{
			string(domain.CategoryPortrait): 199,
			string(domain.CategoryEvent):    499,
			string(domain.CategoryWedding):  1499,
		},
		Reconciliation: ReconciliationConfig{
			Enabled:   true,
			Interval:  30 * time.Second,
			Grace:     time.Minute,
			BatchSize: 100,
			LeaseTTL:  25 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env (if present), then the YAML file at path (if present) with
// environment variables expanded, then BLUEPRINT_DB_* overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			expanded := []byte(os.ExpandEnv(string(data)))
			// A pricing section in the file replaces the default table.
			defaults := cfg.Pricing
			cfg.Pricing = nil
			if err := yaml.Unmarshal(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			if cfg.Pricing == nil {
				cfg.Pricing = defaults
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("BLUEPRINT_DB_HOST", &c.Database.Host)
	setString("BLUEPRINT_DB_USERNAME", &c.Database.User)
	setString("BLUEPRINT_DB_PASSWORD", &c.Database.Password)
	setString("BLUEPRINT_DB_DATABASE", &c.Database.DBName)
	setString("BLUEPRINT_DB_SCHEMA", &c.Database.Schema)
	setString("REDIS_ADDRESS", &c.Redis.Address)
	setString("LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("BLUEPRINT_DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BLUEPRINT_DB_PORT: %w", err)
		}
		c.Database.Port = port
	}
	if v := os.Getenv("PORT"); v != "" {
		c.HTTP.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.HTTP.AllowedOrigins = append(c.HTTP.AllowedOrigins, v)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Payments.MaxAmount <= 0 {
		errs = append(errs, errors.New("payments.max_amount must be positive"))
	}
	if c.Payments.AdvancePercentage <= 0 || c.Payments.AdvancePercentage > 100 {
		errs = append(errs, errors.New("payments.advance_percentage must be in (0, 100]"))
	}
	if c.Payments.FailureRate < 0 || c.Payments.FailureRate > 1 {
		errs = append(errs, errors.New("payments.failure_rate must be in [0, 1]"))
	}
	if len(c.Pricing) == 0 {
		errs = append(errs, errors.New("pricing must list at least one category"))
	}
	for category, price := range c.Pricing {
		if price < 0 {
			errs = append(errs, fmt.Errorf("pricing.%s must not be negative", category))
		}
	}
	if c.Reconciliation.Enabled && c.Reconciliation.Interval <= 0 {
		errs = append(errs, errors.New("reconciliation.interval must be positive"))
	}
	return errors.Join(errs...)
}

// Prices converts the configured pricing table.
func (c *Config) Prices() map[domain.Category]decimal.Decimal {
	out := make(map[domain.Category]decimal.Decimal, len(c.Pricing))
	for category, price := range c.Pricing {
		out[domain.Category(strings.ToLower(category))] = decimal.NewFromFloat(price)
	}
	return out
}

func (c PaymentsConfig) MaxAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxAmount)
}
