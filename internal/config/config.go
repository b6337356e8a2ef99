// Package config loads process-wide engine settings from .env file,
// environment variables, and CLI overrides, grounded on the teacher's
// internal/config.Config (same priority order: CLI > env > .env > default).
// This is distinct from the flow/endpoint JSON documents the flowstore
// package loads — those are per-flow call-routing data, this is engine
// bring-up configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ScriptDir string `env:"SCRIPT_DIR" envDefault:"./flows"`
	SoundsDir string `env:"SOUNDS_DIR" envDefault:"./sounds"`

	IVRFlowFile        string `env:"IVR_FLOW_FILE" envDefault:"ivrconfig.json"`
	WebAPIFile         string `env:"WEBAPI_FILE" envDefault:"webAPIConfig.json"`
	ExtensionsFile     string `env:"EXTENSIONS_FILE" envDefault:"Extensions.json"`
	RecordingTypeFile  string `env:"RECORDING_TYPE_FILE" envDefault:"RecordingType.json"`
	ReloadPollInterval time.Duration `env:"RELOAD_POLL_INTERVAL" envDefault:"5s"`
	WatchEnabled       bool          `env:"WATCH_ENABLED" envDefault:"true"`

	VisitBudget int `env:"VISIT_BUDGET" envDefault:"10"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8088"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AdminToken   string        `env:"ADMIN_TOKEN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional outbound MQTT publisher for call lifecycle events (§4.10).
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"ivr-engine"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	// Auth cache settings (§4.7): the client-credentials settings of the one
	// process-wide token cache; nodes only choose whether to attach auth.
	OAuthTokenURL     string `env:"OAUTH_TOKEN_URL"`
	OAuthClientID     string `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"OAUTH_CLIENT_SECRET"`
	OAuthScope        string `env:"OAUTH_SCOPE"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile   string
	ScriptDir string
	SoundsDir string
	HTTPAddr  string
	LogLevel  string
}

// Load reads configuration from a .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if overrides.ScriptDir != "" {
		cfg.ScriptDir = overrides.ScriptDir
	}
	if overrides.SoundsDir != "" {
		cfg.SoundsDir = overrides.SoundsDir
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	return cfg, nil
}
