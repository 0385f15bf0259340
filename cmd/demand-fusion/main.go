package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	httpapi "github.com/OmRanAlot/BrownHacks2026/internal/api/http"
	"github.com/OmRanAlot/BrownHacks2026/internal/app"
	"github.com/OmRanAlot/BrownHacks2026/internal/config"
	applog "github.com/OmRanAlot/BrownHacks2026/internal/logger"
	"github.com/OmRanAlot/BrownHacks2026/internal/scheduler"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log, closer, err := applog.New(applog.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to build logger")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble service")
	}
	defer a.Close()

	for _, p := range a.Service.Providers() {
		log.Info().Str("provider", p.Name).Dur("timeout", p.Timeout).Msg("signal provider registered")
	}

	// Keep the cache warm for the configured baselines.
	sched := scheduler.New(a.Service, a.Location, cfg.Warmup.Baselines, cfg.Warmup.Interval, cfg.Forecast.Deadline+5*time.Second, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	server := fiber.New(fiber.Config{
		AppName:               "demand-fusion",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Must exceed the provider deadline so slow fan-outs still get answered.
		WriteTimeout: cfg.Forecast.Deadline + 10*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	server.Use(logger.New())
	server.Use(recover.New())

	httpapi.RegisterRoutes(server, a.Service, httpapi.Options{
		Location:        a.Location,
		DefaultBaseline: cfg.Forecast.DefaultBaseline,
		Gatherer:        a.Registry,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := server.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
