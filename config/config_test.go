package config

import (
	"strings"
	"testing"
	"time"
)

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "cargo",
		Password: "secret",
		Name:     "cargo_smart",
		SSLMode:  "disable",
	}
	dsn := db.GetDSN()

	expected := "host=localhost port=5432 user=cargo password=secret dbname=cargo_smart sslmode=disable"
	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	e := cfg.Engine
	if e.Threshold != 0.3 || e.MaxAlternatives != 3 || e.ImprovementEps != 0.05 {
		t.Errorf("engine defaults = %+v", e)
	}
	if e.WeightETA != 0.6 || e.WeightToll != 0.1 || e.WeightPDelay != 0.3 {
		t.Errorf("weight defaults = %+v", e)
	}
	if e.Timeout != 5*time.Second || cfg.Model.Timeout != 500*time.Millisecond {
		t.Errorf("timeouts = %v / %v", e.Timeout, cfg.Model.Timeout)
	}
	if cfg.Outbox.BaseBackoff != 5*time.Second || cfg.Outbox.MaxBackoff != 5*time.Minute {
		t.Errorf("outbox backoff = %+v", cfg.Outbox)
	}
	if cfg.Notify.Enabled() {
		t.Error("notifications should be disabled without credentials")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("P_DELAY_THRESHOLD", "0.45")
	t.Setenv("EVALUATE_TIMEOUT", "2s")
	t.Setenv("STRICT_AUDIT", "true")
	t.Setenv("ROUTING_PROVIDER", "catalog")
	t.Setenv("ROUTE_CATALOG_PATH", "/etc/cargo/catalog.yaml")
	t.Setenv("ONESIGNAL_APP_ID", "app")
	t.Setenv("ONESIGNAL_REST_API_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Engine.Threshold != 0.45 || cfg.Engine.Timeout != 2*time.Second || !cfg.Engine.StrictAudit {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if !cfg.Notify.Enabled() {
		t.Error("notifications should be enabled")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"SERVER_PORT", "not-a-number", "Port"},
		{"P_DELAY_THRESHOLD", "1.5", "P_DELAY_THRESHOLD"},
		{"MAX_ALTERNATIVES", "-1", "MAX_ALTERNATIVES"},
		{"ROUTING_PROVIDER", "osrm", "ROUTING_PROVIDER"},
		{"ROUTING_PROVIDER", "catalog", "ROUTE_CATALOG_PATH"},
		{"STORE_DRIVER", "sqlite", "STORE_DRIVER"},
		{"EVALUATE_TIMEOUT", "soon", "Timeout"},
		{"OUTBOX_CLAIM_LEASE", "5s", "OUTBOX_CLAIM_LEASE"},
		{"ROUTING_SEED", "-3", "RoutingSeed"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

func TestRoutingSeed(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Engine.RoutingSeed != nil {
		t.Fatalf("RoutingSeed = %d, want unset", *cfg.Engine.RoutingSeed)
	}
	if cfg.Engine.Seed() == 0 {
		t.Error("Seed() without ROUTING_SEED should be time-derived")
	}

	t.Setenv("ROUTING_SEED", "42")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got := cfg.Engine.Seed(); got != 42 {
		t.Errorf("Seed() = %d, want 42", got)
	}
	if cfg.Outbox.ClaimLease != time.Minute {
		t.Errorf("Outbox.ClaimLease = %s, want 1m", cfg.Outbox.ClaimLease)
	}
}
