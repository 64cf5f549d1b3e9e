package postgres

import (
	"context"
	"testing"
	"time"
)

func TestNewPoolWithConfigInvalidURL(t *testing.T) {
	if _, err := NewPoolWithConfig(context.Background(), PoolConfig{DatabaseURL: "not-a-url"}); err == nil {
		t.Fatalf("expected error when parsing invalid URL")
	}
}

func TestBuildConfigAppliesLimits(t *testing.T) {
	config, err := buildConfig(PoolConfig{
		DatabaseURL:       "postgres://user:pw@localhost:5432/minibank",
		MaxConns:          7,
		MinConns:          2,
		HealthCheckPeriod: time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.MaxConns != 7 || config.MinConns != 2 || config.HealthCheckPeriod != time.Minute {
		t.Fatalf("unexpected pool limits: max=%d min=%d period=%s", config.MaxConns, config.MinConns, config.HealthCheckPeriod)
	}
	if config.ConnConfig.RuntimeParams["application_name"] != applicationName {
		t.Fatalf("expected application_name %q, got %q", applicationName, config.ConnConfig.RuntimeParams["application_name"])
	}
}

func TestBuildConfigKeepsExplicitApplicationName(t *testing.T) {
	config, err := buildConfig(PoolConfig{DatabaseURL: "postgres://localhost:5432/minibank?application_name=ops"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.ConnConfig.RuntimeParams["application_name"] != "ops" {
		t.Fatalf("expected explicit application_name to win, got %q", config.ConnConfig.RuntimeParams["application_name"])
	}
}

func TestNewPoolWithConfigPingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewPoolWithConfig(ctx, PoolConfig{
		DatabaseURL: "postgres://invalid@127.0.0.1:1/db?connect_timeout=1",
		MaxConns:    1,
	})
	if err == nil {
		t.Fatalf("expected error when pool cannot connect")
	}
}
