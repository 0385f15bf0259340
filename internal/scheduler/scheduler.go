package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

// Forecaster is the part of forecast.Service the warm-up job needs.
type Forecaster interface {
	Forecast(ctx context.Context, req forecast.Request) (forecast.FusedForecast, error)
}

// Scheduler periodically forecasts the current hour for each configured
// baseline so interactive requests find a warm cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Forecaster
	location  forecast.Location
	baselines []float64
	interval  time.Duration
	timeout   time.Duration
	log       zerolog.Logger
}

// New creates a new Scheduler. timeout bounds each forecast of a run.
func New(service Forecaster, location forecast.Location, baselines []float64, interval, timeout time.Duration, log zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		location:  location,
		baselines: baselines,
		interval:  interval,
		timeout:   timeout,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the warm-up job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.baselines) == 0 {
		s.log.Info().Msg("no warm-up baselines configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce forecasts the current hour for every baseline concurrently.
func (s *Scheduler) RunOnce() {
	s.log.Debug().Int("baselines", len(s.baselines)).Msg("running cache warm-up")

	var wg sync.WaitGroup
	for _, baseline := range s.baselines {
		wg.Add(1)
		go func() {
			defer wg.Done()

			timeout := s.timeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			req := forecast.Request{Location: s.location, BaselineRatePerHour: baseline}
			if _, err := s.service.Forecast(ctx, req); err != nil {
				s.log.Warn().Err(err).Float64("baseline", baseline).Msg("warm-up forecast failed")
			}
		}()
	}
	wg.Wait()
	s.log.Debug().Msg("cache warm-up completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
