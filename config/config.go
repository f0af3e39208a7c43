package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Engine    EngineConfig
	Model     ModelConfig
	Notify    NotifyConfig
	Outbox    OutboxConfig
	Rerouter  RerouterConfig
	Collector CollectorConfig
}

type ServerConfig struct {
	Port int `env:"SERVER_PORT" envDefault:"8080"`
	// StoreDriver selects postgres or memory persistence.
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"cargo"`
	Password string `env:"DB_PASSWORD" envDefault:"cargo_dev_password"`
	Name     string `env:"DB_NAME" envDefault:"cargo_smart"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type CORSConfig struct {
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

type EngineConfig struct {
	Threshold       float64       `env:"P_DELAY_THRESHOLD" envDefault:"0.3"`
	MaxAlternatives int           `env:"MAX_ALTERNATIVES" envDefault:"3"`
	ImprovementEps  float64       `env:"IMPROVEMENT_EPS" envDefault:"0.05"`
	WeightETA       float64       `env:"SCORE_W_ETA" envDefault:"0.6"`
	WeightToll      float64       `env:"SCORE_W_TOLL" envDefault:"0.1"`
	WeightPDelay    float64       `env:"SCORE_W_P_DELAY" envDefault:"0.3"`
	AltDiscount     float64       `env:"ALT_P_DELAY_DISCOUNT" envDefault:"0.10"`
	Timeout         time.Duration `env:"EVALUATE_TIMEOUT" envDefault:"5s"`
	StrictAudit     bool          `env:"STRICT_AUDIT" envDefault:"false"`
	RoutingProvider string        `env:"ROUTING_PROVIDER" envDefault:"graph"`
	CatalogPath     string        `env:"ROUTE_CATALOG_PATH"`
	// RoutingSeed fixes the graph provider's random sequence. Unset means a
	// fresh time-derived seed per process.
	RoutingSeed *uint64 `env:"ROUTING_SEED"`
}

// Seed returns ROUTING_SEED when set, otherwise a seed derived from the
// current time.
func (e EngineConfig) Seed() uint64 {
	if e.RoutingSeed != nil {
		return *e.RoutingSeed
	}
	return uint64(time.Now().UnixNano())
}

type ModelConfig struct {
	Path    string        `env:"MODEL_PATH" envDefault:"deploy/delay_model.json"`
	Timeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"500ms"`
}

type NotifyConfig struct {
	OneSignalAppID  string        `env:"ONESIGNAL_APP_ID"`
	OneSignalAPIKey string        `env:"ONESIGNAL_REST_API_KEY"`
	OneSignalURL    string        `env:"ONESIGNAL_API_URL" envDefault:"https://api.onesignal.com/notifications?c=push"`
	Timeout         time.Duration `env:"ONESIGNAL_TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether push credentials are configured.
func (n NotifyConfig) Enabled() bool {
	return n.OneSignalAppID != "" && n.OneSignalAPIKey != ""
}

type OutboxConfig struct {
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"5s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"20"`
	MaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"8"`
	BaseBackoff  time.Duration `env:"OUTBOX_BASE_BACKOFF" envDefault:"5s"`
	MaxBackoff   time.Duration `env:"OUTBOX_MAX_BACKOFF" envDefault:"5m"`
	// ClaimLease hides a notification from other senders while one is
	// delivering it.
	ClaimLease time.Duration `env:"OUTBOX_CLAIM_LEASE" envDefault:"1m"`
}

type RerouterConfig struct {
	APIBaseURL  string `env:"REROUTE_API_URL" envDefault:"http://localhost:8080"`
	IntervalSec int    `env:"REROUTE_INTERVAL_SEC" envDefault:"300"`
	BatchSize   int    `env:"REROUTE_BATCH_SIZE" envDefault:"100"`
	MetricsPort int    `env:"REROUTE_METRICS_PORT" envDefault:"9101"`
}

type CollectorConfig struct {
	MQTTBroker  string `env:"MQTT_BROKER" envDefault:"tcp://localhost:1883"`
	MQTTTopic   string `env:"MQTT_TOPIC" envDefault:"cargo/weather/+"`
	ClientID    string `env:"MQTT_CLIENT_ID" envDefault:"cargo-collector"`
	MetricsPort int    `env:"COLLECTOR_METRICS_PORT" envDefault:"9102"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	e := c.Engine
	if e.Threshold < 0 || e.Threshold > 1 {
		return fmt.Errorf("invalid P_DELAY_THRESHOLD: %v not in [0,1]", e.Threshold)
	}
	if e.MaxAlternatives < 0 {
		return fmt.Errorf("invalid MAX_ALTERNATIVES: %d", e.MaxAlternatives)
	}
	if e.ImprovementEps < 0 {
		return fmt.Errorf("invalid IMPROVEMENT_EPS: %v", e.ImprovementEps)
	}
	if e.AltDiscount < 0 || e.AltDiscount > 1 {
		return fmt.Errorf("invalid ALT_P_DELAY_DISCOUNT: %v not in [0,1]", e.AltDiscount)
	}
	switch strings.ToLower(e.RoutingProvider) {
	case "graph":
	case "catalog":
		if e.CatalogPath == "" {
			return fmt.Errorf("ROUTE_CATALOG_PATH is required when ROUTING_PROVIDER=catalog")
		}
	default:
		return fmt.Errorf("invalid ROUTING_PROVIDER: %q", e.RoutingProvider)
	}
	switch c.Server.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %q", c.Server.StoreDriver)
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("invalid OUTBOX_MAX_ATTEMPTS: %d", c.Outbox.MaxAttempts)
	}
	if c.Outbox.ClaimLease <= c.Notify.Timeout {
		return fmt.Errorf("invalid OUTBOX_CLAIM_LEASE: %s must exceed ONESIGNAL_TIMEOUT %s", c.Outbox.ClaimLease, c.Notify.Timeout)
	}
	if c.Rerouter.IntervalSec < 1 {
		return fmt.Errorf("invalid REROUTE_INTERVAL_SEC: %d", c.Rerouter.IntervalSec)
	}
	return nil
}
