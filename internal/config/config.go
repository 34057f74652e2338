// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Port        string        `env:"PORT" envDefault:"8000"`
	BasePath    string        `env:"BASE_PATH" envDefault:"/api/v1"`
	WebDir      string        `env:"WEB_DIR"`
	CORSOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	RedisAddr   string        `env:"REDIS_ADDR"`
	DatabaseURL string        `env:"DATABASE_URL"`

	KIS KISConfig `envPrefix:"KIS_"`
}

// KISConfig holds broker API credentials and limits
type KISConfig struct {
	Env         string        `env:"ENV" envDefault:"demo"`
	AppKey      string        `env:"APP_KEY"`
	AppSecret   string        `env:"APP_SECRET"`
	Account     string        `env:"ACCOUNT"` // CANO, 8 digits
	ProductCode string        `env:"PRODUCT_CODE" envDefault:"01"`
	ConfigPath  string        `env:"CONFIG_PATH"`
	RatePerSec  float64       `env:"RATE_PER_SEC"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// credentialsFile is the broker's kis_devlp.yaml layout. Production and demo
// servers use separate keys and accounts.
type credentialsFile struct {
	MyApp        string `yaml:"my_app"`
	MySec        string `yaml:"my_sec"`
	PaperApp     string `yaml:"paper_app"`
	PaperSec     string `yaml:"paper_sec"`
	MyAcctStock  string `yaml:"my_acct_stock"`
	MyPaperStock string `yaml:"my_paper_stock"`
	MyProd       string `yaml:"my_prod"`
}

var (
	ErrMissingCredentials = errors.New("KIS_APP_KEY and KIS_APP_SECRET are required")
	ErrMissingAccount     = errors.New("KIS_ACCOUNT is required")
)

// Load reads configuration from environment variables, then fills any blank
// broker credentials from KIS_CONFIG_PATH when it is set.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.KIS.Env {
	case "demo", "real":
	default:
		return nil, fmt.Errorf("KIS_ENV must be demo or real, got %q", cfg.KIS.Env)
	}

	if cfg.KIS.ConfigPath != "" {
		if err := cfg.KIS.loadFile(cfg.KIS.ConfigPath); err != nil {
			return nil, err
		}
	}

	// demo accounts are limited to 2 req/s, production to 20
	if cfg.KIS.RatePerSec <= 0 {
		cfg.KIS.RatePerSec = 2
		if cfg.KIS.Env == "real" {
			cfg.KIS.RatePerSec = 15
		}
	}
	return cfg, nil
}

func (k *KISConfig) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var f credentialsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	app, sec, acct := f.PaperApp, f.PaperSec, f.MyPaperStock
	if k.Env == "real" {
		app, sec, acct = f.MyApp, f.MySec, f.MyAcctStock
	}
	fill(&k.AppKey, app)
	fill(&k.AppSecret, sec)
	fill(&k.Account, acct)
	if f.MyProd != "" && os.Getenv("KIS_PRODUCT_CODE") == "" {
		k.ProductCode = f.MyProd
	}
	return nil
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// IsReal reports whether orders go to the production server
func (c *Config) IsReal() bool {
	return c.KIS.Env == "real"
}

// HasQueue returns true if a Redis address is configured for background jobs
func (c *Config) HasQueue() bool {
	return c.RedisAddr != ""
}

// HasJournal returns true if orders can be journaled to Postgres
func (c *Config) HasJournal() bool {
	return c.DatabaseURL != ""
}

// Validate ensures the broker credentials are present
func (c *Config) Validate() error {
	if c.KIS.AppKey == "" || c.KIS.AppSecret == "" {
		return ErrMissingCredentials
	}
	if c.KIS.Account == "" {
		return ErrMissingAccount
	}
	if len(c.KIS.Account) != 8 {
		return fmt.Errorf("KIS_ACCOUNT must be 8 digits, got %d characters", len(c.KIS.Account))
	}
	return nil
}
