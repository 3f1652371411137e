package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/gps-hub/gps-hub-server/internal/api"
    "github.com/gps-hub/gps-hub-server/internal/config"
    "github.com/gps-hub/gps-hub-server/internal/registry"
)

func main() {
    // Command line flags
    var configFile string
    flag.StringVar(&configFile, "config", "config/gps-server.yml", "Configuration file path")
    flag.Parse()

    // Setup logging
    log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
    zerolog.SetGlobalLevel(zerolog.InfoLevel)

    // Load configuration
    cfg, err := config.Load(configFile)
    if err != nil {
        log.Fatal().Err(err).Msg("Failed to load configuration")
    }

    // Set log level
    level, err := zerolog.ParseLevel(cfg.Log.Level)
    if err != nil {
        level = zerolog.InfoLevel
    }
    zerolog.SetGlobalLevel(level)

    if cfg.Log.Format == "json" {
        log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
    }

    cfg.PrintConfigSummary()

    // Provider session registry
    reg := registry.New()

    // Start REST API server
    apiServer := api.NewRESTServer(cfg, reg)

    go func() {
        addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
        if err := apiServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal().Err(err).Msg("REST API server failed")
        }
    }()

    // Wait for signal
    sigChan := make(chan os.Signal, 1)
    signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

    sig := <-sigChan
    log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    // Shutdown API server
    if err := apiServer.Shutdown(ctx); err != nil {
        log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
    }

    // Close live provider sessions
    reg.Shutdown(ctx)

    log.Info().Msg("GPS Hub Server stopped")
}
