package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWhenNothingSet(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(Overrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScriptDir != "./flows" || cfg.VisitBudget != 10 || cfg.HTTPAddr != ":8088" {
		t.Fatalf("Load() = %+v, want struct defaults", cfg)
	}
	if cfg.ReloadPollInterval != 5*time.Second {
		t.Fatalf("ReloadPollInterval = %v, want 5s", cfg.ReloadPollInterval)
	}
}

func TestLoadEnvVarOverridesDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("VISIT_BUDGET", "25")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(Overrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VisitBudget != 25 || cfg.LogLevel != "debug" {
		t.Fatalf("Load() = %+v, want VisitBudget=25 LogLevel=debug", cfg)
	}
}

func TestLoadDotEnvFileOverridesDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("SCRIPT_DIR=/srv/flows\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Overrides{EnvFile: envPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScriptDir != "/srv/flows" {
		t.Fatalf("ScriptDir = %q, want /srv/flows", cfg.ScriptDir)
	}
}

func TestLoadCLIOverrideBeatsEnvVarAndDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("SCRIPT_DIR=/from/dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCRIPT_DIR", "/from/env")

	cfg, err := Load(Overrides{EnvFile: envPath, ScriptDir: "/from/cli"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScriptDir != "/from/cli" {
		t.Fatalf("ScriptDir = %q, want CLI override /from/cli to win", cfg.ScriptDir)
	}
}

// clearEnv strips env vars this package reads so each test starts from a
// clean slate regardless of the host shell's environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SCRIPT_DIR", "SOUNDS_DIR", "IVR_FLOW_FILE", "WEBAPI_FILE",
		"EXTENSIONS_FILE", "RECORDING_TYPE_FILE", "RELOAD_POLL_INTERVAL",
		"WATCH_ENABLED", "VISIT_BUDGET", "HTTP_ADDR", "HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT", "ADMIN_TOKEN", "LOG_LEVEL",
		"MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
		"OAUTH_TOKEN_URL", "OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "OAUTH_SCOPE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}
