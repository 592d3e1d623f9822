package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pricepulse_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Rounds.DurationSeconds != 300 {
		t.Fatalf("duration=%d want 300", cfg.Rounds.DurationSeconds)
	}
	if cfg.Rounds.SweepInterval != 10*time.Second {
		t.Fatalf("sweep interval=%s want 10s", cfg.Rounds.SweepInterval)
	}
	if cfg.Rounds.FeedLimit != 20 {
		t.Fatalf("feed limit=%d want 20", cfg.Rounds.FeedLimit)
	}
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("load accepted empty DATABASE_URL")
	}
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pricepulse_test")

	t.Setenv("ROUND_DURATION_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("load accepted zero round duration")
	}

	t.Setenv("ROUND_DURATION_SECONDS", "300")
	t.Setenv("ROUND_SWEEP_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("load accepted zero sweep interval")
	}
}
