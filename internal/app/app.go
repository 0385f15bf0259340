// Package app wires configuration into a ready forecast service. It is shared
// by the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/OmRanAlot/BrownHacks2026/internal/config"
	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	"github.com/OmRanAlot/BrownHacks2026/internal/forecast/providers"
	"github.com/OmRanAlot/BrownHacks2026/internal/geo"
	"github.com/OmRanAlot/BrownHacks2026/internal/metrics"
	"github.com/OmRanAlot/BrownHacks2026/internal/recorder"
	"github.com/OmRanAlot/BrownHacks2026/internal/store"
)

const (
	defaultRetryInterval    = 500 * time.Millisecond
	defaultRetryMaxInterval = 5 * time.Second
)

// App holds the assembled components and everything that must be closed on shutdown.
type App struct {
	Config   *config.AppConfig
	Log      zerolog.Logger
	Registry *prometheus.Registry
	Service  *forecast.Service
	Location forecast.Location

	closers []io.Closer
}

// New builds every component from cfg using the given logger.
func New(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	a.Registry = ProvideRegistry()
	rec := metrics.New(a.Registry)

	cache, err := a.provideCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	history, err := a.provideHistory()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Location = ProvideLocation(cfg, log)
	provs := ProvideProviders(cfg)
	if len(provs) == 0 {
		log.Warn().Msg("no signal providers configured; forecasts will equal the baseline")
	}

	orchestrator := forecast.NewOrchestrator(cache, provs, forecast.OrchestratorConfig{
		Deadline:       cfg.Forecast.Deadline,
		CacheTTL:       cfg.Forecast.CacheTTL,
		TimeZone:       cfg.TimeZone(),
		DedupeInflight: cfg.Forecast.DedupeInflight,
	}, forecast.WithLogger(log), forecast.WithMetrics(rec))

	a.Service = forecast.NewService(orchestrator, history, log)
	return a, nil
}

// Close releases the cache and history backends.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ProvideRegistry creates a Prometheus registry with the runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (a *App) provideCache(ctx context.Context) (forecast.Cache, error) {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case "redis":
		c, err := store.NewRedisCache(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.closers = append(a.closers, c)
		a.Log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis forecast cache")
		return c, nil
	default:
		return store.NewMemoryCache(cfg.MaxEntries), nil
	}
}

func (a *App) provideHistory() (forecast.History, error) {
	cfg := a.Config.History
	switch cfg.Backend {
	case "sqlite":
		h, err := recorder.NewSQLiteHistory(cfg.SQLitePath, a.Log)
		if err != nil {
			return nil, fmt.Errorf("sqlite history: %w", err)
		}
		a.closers = append(a.closers, h)
		return h, nil
	case "none":
		return nil, nil
	default:
		return store.NewMemoryHistory(cfg.MaxRecords, cfg.MaxAge), nil
	}
}

// ProvideLocation returns the configured storefront, geocoding its address
// when possible and falling back to the configured coordinates otherwise.
func ProvideLocation(cfg *config.AppConfig, log zerolog.Logger) forecast.Location {
	lc := cfg.Location
	loc := forecast.Location{Name: lc.Name, Latitude: lc.Latitude, Longitude: lc.Longitude}
	if lc.Address == "" {
		return loc
	}

	resolved, err := geo.NewResolver(lc.GeocoderAPIKey).Resolve(lc.Name, geo.Address{
		Street:  lc.Address,
		City:    lc.City,
		Country: lc.Country,
	})
	if err != nil {
		log.Warn().Err(err).Msg("geocoding failed; using configured coordinates")
		return loc
	}
	log.Info().Float64("lat", resolved.Latitude).Float64("lon", resolved.Longitude).Msg("storefront geocoded")
	return resolved
}

// ProvideProviders builds the signal providers enabled in cfg, in a fixed order.
func ProvideProviders(cfg *config.AppConfig) []forecast.SignalProvider {
	pc := cfg.Providers
	client := &http.Client{Timeout: pc.HTTPTimeout}
	backoff := providers.BackoffConfig{MaxRetries: pc.MaxRetries}
	if pc.MaxRetries > 0 {
		backoff.InitialInterval = defaultRetryInterval
		backoff.MaxInterval = defaultRetryMaxInterval
	}

	var provs []forecast.SignalProvider
	if pc.Weather.Enabled {
		provs = append(provs, providers.NewWeatherEventProvider(client, providers.WeatherEventConfig{
			BaseURL:       pc.Weather.BaseURL,
			EventsURL:     pc.Weather.EventsURL,
			EventsBorough: pc.Weather.EventsBorough,
			Timeout:       pc.Weather.Timeout,
			Backoff:       backoff,
		}))
	}
	if pc.Transit.LiveSource != "" && pc.Transit.BaselineSource != "" {
		provs = append(provs, providers.NewTransitProvider(client, providers.TransitConfig{
			LiveSource:     pc.Transit.LiveSource,
			BaselineSource: pc.Transit.BaselineSource,
			Timeout:        pc.Transit.Timeout,
			Backoff:        backoff,
		}))
	}
	if pc.Traffic.Source != "" {
		provs = append(provs, providers.NewRoadTrafficProvider(client, providers.RoadTrafficConfig{
			Source:  pc.Traffic.Source,
			Timeout: pc.Traffic.Timeout,
			Backoff: backoff,
		}))
	}
	for _, r := range pc.Remote {
		provs = append(provs, providers.NewRemoteProvider(client, providers.RemoteConfig{
			Name:    r.Name,
			URL:     r.URL,
			Timeout: r.Timeout,
			Backoff: backoff,
		}))
	}
	return provs
}
