package database

import (
	"context"
	"errors"
	"testing"

	"github.com/nikhilbhutani/audiobookai/internal/config"
)

func TestNewPoolWithoutURL(t *testing.T) {
	if _, err := NewPool(context.Background(), config.DatabaseConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPoolConfigAppliesLimits(t *testing.T) {
	cfg, err := poolConfig(config.DatabaseConfig{URL: "postgres://u:p@localhost:5432/runs", MaxConns: 7, MinConns: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxConns != 7 || cfg.MinConns != 2 {
		t.Fatalf("unexpected limits %d/%d", cfg.MaxConns, cfg.MinConns)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "audiobookai" {
		t.Fatalf("expected application name, got %q", got)
	}
}

func TestPoolConfigKeepsURLSettings(t *testing.T) {
	cfg, err := poolConfig(config.DatabaseConfig{URL: "postgres://u:p@localhost:5432/runs?application_name=reporting&pool_max_conns=3", MinConns: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "reporting" {
		t.Fatalf("expected URL application name to win, got %q", got)
	}
	if cfg.MaxConns != 3 || cfg.MinConns != 0 {
		t.Fatalf("expected URL pool size and no min above max, got %d/%d", cfg.MaxConns, cfg.MinConns)
	}
}

func TestPoolConfigRejectsBadURL(t *testing.T) {
	if _, err := poolConfig(config.DatabaseConfig{URL: "postgres://localhost:notaport/x"}); err == nil {
		t.Fatal("expected parse error")
	}
}
