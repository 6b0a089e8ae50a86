package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}

	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}

	if got := cfg.Conversation.TTL; got != 30*time.Minute {
		t.Fatalf("expected conversation TTL 30m, got %v", got)
	}

	if got := cfg.Inventory.ReservationTTL; got != 5*time.Minute {
		t.Fatalf("expected reservation TTL 5m, got %v", got)
	}

	windows := cfg.Kitchen.PeakWindows()
	if len(windows) != 2 || windows[0] != [2]int{11, 13} || windows[1] != [2]int{18, 20} {
		t.Fatalf("unexpected peak windows: %v", windows)
	}

	if cfg.Dispatch.RetryWaitMins != 15 {
		t.Fatalf("expected dispatch retry wait 15, got %d", cfg.Dispatch.RetryWaitMins)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_InvalidPeakWindow(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("PLATEFUL_KITCHEN_PEAK_START_HOUR", "14")
	t.Setenv("PLATEFUL_KITCHEN_PEAK_END_HOUR", "12")

	if _, err := Load(); err == nil {
		t.Fatal("expected inverted peak window to return an error")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
}
