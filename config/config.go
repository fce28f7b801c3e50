package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration. Tunables come from config.yaml;
// secrets (database password, Telegram credentials) come from the environment
// or a .env file.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Feed       FeedConfig       `yaml:"feed"`
	Session    SessionConfig    `yaml:"session"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Lease      LeaseConfig      `yaml:"lease"`
	Alerts     AlertConfig      `yaml:"alerts"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Verbose    bool             `yaml:"verbose"`

	Postgres PostgresConfig `yaml:"-"`
}

// SearchConfig describes the feed query: which vehicles to monitor.
type SearchConfig struct {
	Manufacturer    string   `yaml:"manufacturer"`
	ModelGroup      string   `yaml:"model_group"`
	YearMin         int      `yaml:"year_min"`
	YearMax         int      `yaml:"year_max"`
	PriceMinManwon  int      `yaml:"price_min_manwon"`
	PriceMaxManwon  int      `yaml:"price_max_manwon"`
	MileageMaxKm    int      `yaml:"mileage_max_km"`
	BodyKeywords    []string `yaml:"body_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// FeedConfig tunes the bulk retrieval client.
type FeedConfig struct {
	PageSize          int     `yaml:"page_size"`
	MaxPages          int     `yaml:"max_pages"`
	MaxRetries        int     `yaml:"max_retries"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SessionConfig tunes the authenticated session lifecycle.
type SessionConfig struct {
	ValidityMinutes         int `yaml:"validity_minutes"`
	HandshakeTimeoutSeconds int `yaml:"handshake_timeout_seconds"`
}

// MonitoringConfig tunes the polling loop and enrichment budget.
type MonitoringConfig struct {
	IntervalMinutes       int `yaml:"interval_minutes"`
	EnrichmentLimit       int `yaml:"enrichment_limit"`
	EnrichmentConcurrency int `yaml:"enrichment_concurrency"`
	RateLimitMs           int `yaml:"rate_limit_ms"`
	VeryFreshMaxViews     int `yaml:"very_fresh_max_views"`
	FreshMaxViews         int `yaml:"fresh_max_views"`
}

// LeaseConfig tunes the layered lease classification.
type LeaseConfig struct {
	RecentYear       int      `yaml:"recent_year"`
	PriceMinManwon   int      `yaml:"price_min_manwon"`
	PriceMaxManwon   int      `yaml:"price_max_manwon"`
	SaleTypeTokens   []string `yaml:"sale_type_tokens"`
	OverrideLease    []string `yaml:"override_lease"`
	OverridePurchase []string `yaml:"override_purchase"`
}

// AlertConfig configures outbound alerting.
type AlertConfig struct {
	TelegramEnabled bool   `yaml:"telegram_enabled"`
	TelegramToken   string `yaml:"-"`
	TelegramChatID  string `yaml:"-"`
}

// SnapshotConfig enables an optional per-cycle CSV snapshot of the batch.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds database connection settings (environment only).
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
}

// Load reads config.yaml at the given path (missing file falls back to
// defaults), merges the .env file and environment variables, and returns a
// populated Config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := defaults()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.Postgres = PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		User:     getEnv("POSTGRES_USER", "encar"),
		Password: getEnv("POSTGRES_PASSWORD", "encar123"),
		DB:       getEnv("POSTGRES_DB", "encar_db"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}

	cfg.Alerts.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Alerts.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")
	if cfg.Alerts.TelegramEnabled && (cfg.Alerts.TelegramToken == "" || cfg.Alerts.TelegramChatID == "") {
		log.Println("[config] Telegram enabled but TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID missing — disabling")
		cfg.Alerts.TelegramEnabled = false
	}

	if v := getEnvInt("ENRICHMENT_CONCURRENCY", 0); v > 0 {
		cfg.Monitoring.EnrichmentConcurrency = v
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Search: SearchConfig{
			Manufacturer:   "벤츠",
			ModelGroup:     "GLE-클래스",
			YearMin:        2021,
			PriceMaxManwon: 9000,
		},
		Feed: FeedConfig{
			PageSize:          20,
			MaxPages:          10,
			MaxRetries:        3,
			TimeoutSeconds:    30,
			RequestsPerSecond: 2,
		},
		Session: SessionConfig{
			ValidityMinutes:         60,
			HandshakeTimeoutSeconds: 60,
		},
		Monitoring: MonitoringConfig{
			IntervalMinutes:       10,
			EnrichmentLimit:       5,
			EnrichmentConcurrency: 2,
			RateLimitMs:           2000,
			VeryFreshMaxViews:     10,
			FreshMaxViews:         50,
		},
		Lease: LeaseConfig{
			RecentYear:     2019,
			PriceMinManwon: 1000,
			PriceMaxManwon: 8000,
			SaleTypeTokens: []string{"리스", "렌트"},
		},
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.Postgres.Host +
		" port=" + c.Postgres.Port +
		" user=" + c.Postgres.User +
		" password=" + c.Postgres.Password +
		" dbname=" + c.Postgres.DB +
		" sslmode=" + c.Postgres.SSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
