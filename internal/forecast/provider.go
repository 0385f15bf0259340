package forecast

import (
	"context"
	"time"
)

//go:generate mockgen -package=forecast_test -destination=mock_provider_test.go -source=provider.go

// SignalProvider abstracts an external demand signal (weather, transit, road traffic, ...).
type SignalProvider interface {
	Name() string
	Fetch(ctx context.Context, req Request) (Signal, error)
}

// TimeoutProvider is implemented by providers that declare their own call budget.
type TimeoutProvider interface {
	Timeout() time.Duration
}

// Cache is the contract the forecast cache backends must satisfy.
// Backend failures are returned as errors and treated as a miss by the orchestrator.
type Cache interface {
	Get(ctx context.Context, key string) (FusedForecast, bool, error)
	Set(ctx context.Context, key string, value FusedForecast, ttl time.Duration) error
}

// History stores freshly computed forecasts.
type History interface {
	Record(ctx context.Context, rec HistoryRecord) error
	Latest(ctx context.Context) (HistoryRecord, error)
	Range(ctx context.Context, from, to time.Time) ([]HistoryRecord, error)
}

// Metrics receives orchestration measurements. A nil Metrics is allowed.
type Metrics interface {
	ObserveProvider(provider string, outcome string, d time.Duration)
	ObserveCache(result string)
	ObserveForecast(f FusedForecast)
}
