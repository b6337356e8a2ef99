// Command ivr-engine boots the call-flow engine: it loads configuration,
// wires the dispatcher/handler families/event bus/MQTT publisher, starts
// the admin HTTP API, and waits for a shutdown signal. The softswitch host
// that actually originates calls is out of scope (§1) — in production this
// binary is embedded behind the host's scripting bridge, which calls
// engine.Engine.HandleCall per inbound call. This entrypoint demonstrates
// the wiring a host integration would perform.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/api"
	"github.com/voxswitch/ivr-engine/internal/config"
	"github.com/voxswitch/ivr-engine/internal/engine"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ScriptDir, "script-dir", "", "Directory holding the IVR flow/endpoint JSON files (overrides SCRIPT_DIR)")
	flag.StringVar(&overrides.SoundsDir, "sounds-dir", "", "Directory holding audio prompt files (overrides SOUNDS_DIR)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "Admin HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Msg("ivr-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(cfg, http.DefaultClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}
	defer eng.Close()
	eng.WatchConfig(ctx)

	srv := api.NewServer(api.ServerOptions{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		AdminToken:   cfg.AdminToken,
		RateLimitRPS: 20,
		RateLimitMax: 40,
		Store:        eng.Store,
		Dispatch:     eng.Dispatch,
		Events:       eng.Events,
		MQTT:         eng.MQTT,
		Version:      fmt.Sprintf("%s (commit=%s, built=%s)", version, commit, buildTime),
		StartTime:    startTime,
		Log:          log,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().
		Str("listen", cfg.HTTPAddr).
		Str("script_dir", cfg.ScriptDir).
		Dur("startup_ms", time.Since(startTime)).
		Msg("ivr-engine ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("admin http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin http server shutdown error")
	}

	log.Info().Msg("ivr-engine stopped")
}
