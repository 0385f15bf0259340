package app

import (
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/OmRanAlot/BrownHacks2026/internal/config"
	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	"github.com/OmRanAlot/BrownHacks2026/internal/forecast/providers"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()

	cfg := &config.AppConfig{}
	require.NoError(t, defaults.Set(cfg))
	cfg.Forecast.TimeZone = "UTC"
	return cfg
}

func names(provs []forecast.SignalProvider) []string {
	out := make([]string, 0, len(provs))
	for _, p := range provs {
		out = append(out, p.Name())
	}
	return out
}

func TestProvideProviders(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg := testConfig(t)
	cfg.Providers.Transit.LiveSource = "live.json"
	cfg.Providers.Transit.BaselineSource = "baseline.json"
	cfg.Providers.Traffic.Source = "congestion.json"
	cfg.Providers.Remote = []config.RemoteProvider{{Name: "llm_events", URL: "http://localhost:7000", Timeout: time.Second}}

	// Act
	provs := ProvideProviders(cfg)

	// Assert
	require.Equal(t, []string{
		providers.WeatherEventName,
		providers.TransitName,
		providers.RoadTrafficName,
		"llm_events",
	}, names(provs))
}

func TestProvideProviders_OnlyWeatherByDefault(t *testing.T) {
	t.Parallel()

	provs := ProvideProviders(testConfig(t))

	require.Equal(t, []string{providers.WeatherEventName}, names(provs))
}

func TestProvideLocation_WithoutAddress(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	loc := ProvideLocation(cfg, zerolog.Nop())

	require.Equal(t, "storefront", loc.Name)
	require.InDelta(t, 40.770530, loc.Latitude, 1e-9)
}

func TestProvideLocation_GeocodeFailureFallsBack(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Location.Address = "1 Lincoln Plaza"

	// No API key: the configured coordinates are kept.
	loc := ProvideLocation(cfg, zerolog.Nop())

	require.InDelta(t, -73.982456, loc.Longitude, 1e-9)
}

func TestNew_SQLiteHistory(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg := testConfig(t)
	cfg.Providers.Weather.Enabled = false
	cfg.History.Backend = "sqlite"
	cfg.History.SQLitePath = t.TempDir() + "/history.db"

	a, err := New(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	// Act
	got, err := a.Service.Forecast(t.Context(), forecast.Request{Location: a.Location, BaselineRatePerHour: 42})

	// Assert
	require.NoError(t, err)
	require.Equal(t, 42.0, got.TotalPerHour)
	require.Empty(t, got.Signals)

	latest, err := a.Service.Latest(t.Context())
	require.NoError(t, err)
	require.Equal(t, 42.0, latest.Forecast.BaselineRatePerHour)
}

func TestNew_NoHistory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Providers.Weather.Enabled = false
	cfg.History.Backend = "none"

	a, err := New(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Service.Latest(t.Context())
	require.ErrorIs(t, err, forecast.ErrNotFound)
}

func TestNew_RedisUnreachable(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	_, err := New(t.Context(), cfg, zerolog.Nop())

	require.Error(t, err)
}
