package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"emupace/internal/governor"
	"emupace/internal/rate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Refresh != governor.DefaultRefresh || cfg.Poll != governor.DefaultPoll {
		t.Fatalf("unexpected rates %v %v", cfg.Refresh, cfg.Poll)
	}
	if cfg.Scale != defaultScale || cfg.MeterEvery != defaultMeterEvery || cfg.Headless {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("config path set without a config file: %s", cfg.ConfigPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
refresh: 60hz
poll: 240
headless: true
save-dir: /tmp/saves
log-level: debug
`)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Refresh != rate.Rate(60) || cfg.Poll != rate.Rate(240) {
		t.Fatalf("unexpected rates %v %v", cfg.Refresh, cfg.Poll)
	}
	if !cfg.Headless || cfg.SaveDir != "/tmp/saves" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ConfigPath != p {
		t.Fatalf("config path = %s, want %s", cfg.ConfigPath, p)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	p := writeConfig(t, "refresh: 60\n")
	t.Setenv("EMUPACE_REFRESH", "50hz")
	t.Setenv("EMUPACE_SAVE_DIR", "/var/saves")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Refresh != rate.Rate(50) {
		t.Fatalf("refresh = %v, want 50hz", cfg.Refresh)
	}
	if cfg.SaveDir != "/var/saves" {
		t.Fatalf("save dir = %s", cfg.SaveDir)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadBadRate(t *testing.T) {
	p := writeConfig(t, "refresh: fast\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for unparsable rate")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{Refresh: 60, Poll: 30, Scale: 1}
	if err := cfg.Validate(); !errors.Is(err, governor.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = Config{Refresh: 60, Poll: 130, Scale: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero scale")
	}
}
