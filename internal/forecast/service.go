package forecast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service couples the orchestrator with a forecast history.
type Service struct {
	orchestrator *Orchestrator
	history      History
	log          zerolog.Logger
}

// NewService creates a new Service. A nil history disables recording.
func NewService(orchestrator *Orchestrator, history History, log zerolog.Logger) *Service {
	return &Service{
		orchestrator: orchestrator,
		history:      history,
		log:          log,
	}
}

// Forecast produces a fused forecast and records it when it was freshly computed.
func (s *Service) Forecast(ctx context.Context, req Request) (FusedForecast, error) {
	res, err := s.orchestrator.forecast(ctx, req)
	if err != nil {
		return FusedForecast{}, err
	}

	if res.Fresh && s.history != nil {
		rec := HistoryRecord{
			ID:          uuid.NewString(),
			Fingerprint: res.Fingerprint,
			Forecast:    res.Forecast,
		}
		if err := s.history.Record(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("fingerprint", res.Fingerprint).Msg("failed to record forecast history")
		}
	}
	return res.Forecast, nil
}

// Providers lists the registered providers.
func (s *Service) Providers() []ProviderInfo {
	return s.orchestrator.Providers()
}

// TimeZone returns the zone used for hour bucketing.
func (s *Service) TimeZone() *time.Location {
	return s.orchestrator.TimeZone()
}

// Latest returns the most recently recorded forecast.
func (s *Service) Latest(ctx context.Context) (HistoryRecord, error) {
	if s.history == nil {
		return HistoryRecord{}, ErrNotFound
	}
	return s.history.Latest(ctx)
}

// Range returns recorded forecasts generated between from and to (inclusive).
func (s *Service) Range(ctx context.Context, from, to time.Time) ([]HistoryRecord, error) {
	if s.history == nil {
		return nil, ErrNotFound
	}
	return s.history.Range(ctx, from, to)
}
