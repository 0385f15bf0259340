package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultDeadline = 20 * time.Second
	DefaultCacheTTL = 30 * time.Minute
)

// OrchestratorConfig holds the tunables of the fusion orchestrator.
type OrchestratorConfig struct {
	// Deadline is shared by every provider call of one request.
	Deadline time.Duration
	// CacheTTL is how long a fused forecast stays servable.
	CacheTTL time.Duration
	// TimeZone is used to default and bucket target times.
	TimeZone *time.Location
	// DedupeInflight collapses concurrent misses for the same fingerprint into one computation.
	DedupeInflight bool
}

// ProviderInfo describes a registered provider.
type ProviderInfo struct {
	Name    string        `json:"name"`
	Timeout time.Duration `json:"timeout"`
}

// Orchestrator dispatches all providers concurrently, substitutes fallbacks for
// failures, fuses the signals and caches the result.
type Orchestrator struct {
	providers []SignalProvider
	cache     Cache
	metrics   Metrics
	log       zerolog.Logger
	now       func() time.Time

	deadline time.Duration
	ttl      time.Duration
	tz       *time.Location
	flight   *singleflight.Group
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator. A nil cache disables caching.
func NewOrchestrator(cache Cache, providers []SignalProvider, cfg OrchestratorConfig, opts ...Option) *Orchestrator {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}

	o := &Orchestrator{
		providers: providers,
		cache:     cache,
		log:       zerolog.Nop(),
		now:       time.Now,
		deadline:  cfg.Deadline,
		ttl:       cfg.CacheTTL,
		tz:        cfg.TimeZone,
	}
	if cfg.DedupeInflight {
		o.flight = &singleflight.Group{}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Providers lists the registered providers in dispatch order.
func (o *Orchestrator) Providers() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(o.providers))
	for _, p := range o.providers {
		info := ProviderInfo{Name: p.Name(), Timeout: o.deadline}
		if tp, ok := p.(TimeoutProvider); ok && tp.Timeout() > 0 && tp.Timeout() < o.deadline {
			info.Timeout = tp.Timeout()
		}
		out = append(out, info)
	}
	return out
}

// TimeZone returns the zone used to bucket target times.
func (o *Orchestrator) TimeZone() *time.Location {
	return o.tz
}

// Forecast returns the fused forecast for req, from cache when possible.
// Provider failures never surface as errors; only an invalid request or a
// cancelled caller context does.
func (o *Orchestrator) Forecast(ctx context.Context, req Request) (FusedForecast, error) {
	res, err := o.forecast(ctx, req)
	return res.Forecast, err
}

// outcome is a forecast plus how it was obtained.
type outcome struct {
	Forecast    FusedForecast
	Fingerprint string
	// Fresh is true only for the caller that ran the provider fan-out.
	Fresh bool
}

func (o *Orchestrator) forecast(ctx context.Context, req Request) (outcome, error) {
	req, err := o.normalize(req)
	if err != nil {
		return outcome{}, err
	}

	key := Fingerprint(req, o.tz)
	if cached, ok := o.lookup(ctx, key); ok {
		cached.Cached = true
		return outcome{Forecast: cached, Fingerprint: key}, nil
	}

	if o.flight == nil {
		f, err := o.compute(ctx, req, key)
		return outcome{Forecast: f, Fingerprint: key, Fresh: err == nil}, err
	}

	// The shared computation outlives any single caller; collect still bounds
	// it by the deadline. Each caller waits on its own context.
	leader := false
	ch := o.flight.DoChan(key, func() (interface{}, error) {
		leader = true
		return o.compute(context.WithoutCancel(ctx), req, key)
	})
	select {
	case <-ctx.Done():
		return outcome{}, fmt.Errorf("forecast aborted: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return outcome{}, res.Err
		}
		f := res.Val.(FusedForecast)
		f.Signals = append([]Signal(nil), f.Signals...)
		return outcome{Forecast: f, Fingerprint: key, Fresh: leader}, nil
	}
}

func (o *Orchestrator) normalize(req Request) (Request, error) {
	b := req.BaselineRatePerHour
	if math.IsNaN(b) || math.IsInf(b, 0) || b <= 0 {
		return req, fmt.Errorf("%w: baselineRatePerHour must be greater than zero, got %v", ErrInvalidRequest, b)
	}
	if req.TargetTime.IsZero() {
		req.TargetTime = o.now().In(o.tz)
	}
	return req, nil
}

func (o *Orchestrator) lookup(ctx context.Context, key string) (FusedForecast, bool) {
	if o.cache == nil {
		return FusedForecast{}, false
	}
	f, ok, err := o.cache.Get(ctx, key)
	switch {
	case err != nil:
		o.log.Warn().Err(err).Str("key", key).Msg("cache lookup failed; treating as miss")
		o.observeCache("error")
		return FusedForecast{}, false
	case ok:
		o.observeCache("hit")
		return f, true
	default:
		o.observeCache("miss")
		return FusedForecast{}, false
	}
}

func (o *Orchestrator) compute(ctx context.Context, req Request, key string) (FusedForecast, error) {
	requestID := uuid.NewString()
	log := o.log.With().Str("request_id", requestID).Logger()
	log.Debug().
		Float64("baseline", req.BaselineRatePerHour).
		Time("target", req.TargetTime).
		Int("providers", len(o.providers)).
		Msg("dispatching providers")

	signals, err := o.collect(ctx, req, log)
	if err != nil {
		return FusedForecast{}, err
	}

	fusion := Fuse(signals, req.BaselineRatePerHour)
	f := FusedForecast{
		BaselineRatePerHour: req.BaselineRatePerHour,
		ExtraPerHour:        fusion.ExtraPerHour,
		TotalPerHour:        fusion.TotalPerHour,
		OverallConfidence:   fusion.OverallConfidence,
		SummaryLabel:        fusion.Label,
		Summary:             fusion.Label.Description(),
		Signals:             signals,
		TargetTime:          req.TargetTime,
		GeneratedAt:         o.now().UTC(),
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, key, f, o.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache store failed")
		}
	}
	if o.metrics != nil {
		o.metrics.ObserveForecast(f)
	}

	log.Info().
		Float64("extra", f.ExtraPerHour).
		Float64("total", f.TotalPerHour).
		Float64("confidence", f.OverallConfidence).
		Str("label", string(f.SummaryLabel)).
		Int("degraded", f.Degraded()).
		Msg("forecast fused")

	// The cache holds its own copy; callers get an independent slice.
	f.Signals = append([]Signal(nil), signals...)
	return f, nil
}

// collect runs every provider under the shared deadline and returns exactly one
// signal per provider, in registration order.
func (o *Orchestrator) collect(ctx context.Context, req Request, log zerolog.Logger) ([]Signal, error) {
	dctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	type indexed struct {
		pos int
		sig Signal
	}
	results := make(chan indexed, len(o.providers))
	for i, p := range o.providers {
		go func(i int, p SignalProvider) {
			results <- indexed{pos: i, sig: o.call(dctx, p, req, log)}
		}(i, p)
	}

	signals := make([]Signal, len(o.providers))
	for range o.providers {
		r := <-results
		signals[r.pos] = r.sig
	}

	// The caller went away; nothing fused from a torn-down request is worth caching.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("forecast aborted: %w", err)
	}
	return signals, nil
}

type fetchResult struct {
	sig Signal
	err error
}

// call invokes a single provider. It returns no later than the provider's own
// timeout or the shared deadline, even if the provider ignores its context.
func (o *Orchestrator) call(ctx context.Context, p SignalProvider, req Request, log zerolog.Logger) Signal {
	name := p.Name()
	if tp, ok := p.(TimeoutProvider); ok && tp.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tp.Timeout())
		defer cancel()
	}

	start := o.now()
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		sig, err := p.Fetch(ctx, req)
		done <- fetchResult{sig: sig, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = fetchResult{err: ctx.Err()}
	}
	elapsed := o.now().Sub(start)

	sig, err := o.accept(name, res)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrProviderTimeout) {
			outcome = "timeout"
		}
		o.observeProvider(name, outcome, elapsed)
		log.Warn().Err(err).Str("provider", name).Dur("elapsed", elapsed).Msg("provider failed; using fallback signal")
		return Fallback(name, err)
	}

	o.observeProvider(name, "ok", elapsed)
	log.Debug().
		Str("provider", name).
		Float64("delta", sig.DeltaPerHour).
		Float64("confidence", sig.Confidence).
		Dur("elapsed", elapsed).
		Msg("provider signal received")
	return sig
}

// accept classifies a provider outcome and sanitizes a successful signal.
func (o *Orchestrator) accept(name string, res fetchResult) (Signal, error) {
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return Signal{}, fmt.Errorf("%w: %v", ErrProviderTimeout, res.err)
		}
		return Signal{}, fmt.Errorf("%w: %v", ErrProviderError, res.err)
	}

	sig := res.sig
	if math.IsNaN(sig.DeltaPerHour) || math.IsInf(sig.DeltaPerHour, 0) {
		return Signal{}, fmt.Errorf("%w: non-finite delta %v", ErrProviderError, sig.DeltaPerHour)
	}
	if c := ClampConfidence(sig.Confidence); c != sig.Confidence {
		o.log.Warn().Str("provider", name).Float64("confidence", sig.Confidence).Float64("clamped", c).Msg("confidence out of range")
		sig.Confidence = c
	}
	sig.SourceID = name
	sig.Succeeded = true
	return sig, nil
}

// Fallback builds the neutral low-confidence signal substituted for a failed provider.
func Fallback(source string, reason error) Signal {
	msg := "unknown"
	if reason != nil {
		msg = reason.Error()
	}
	return Signal{
		SourceID:     source,
		DeltaPerHour: 0,
		Confidence:   FallbackConfidence,
		Explanation:  fmt.Sprintf("%s: unavailable — %s", source, msg),
		Succeeded:    false,
	}
}

func (o *Orchestrator) observeProvider(name, outcome string, d time.Duration) {
	if o.metrics != nil {
		o.metrics.ObserveProvider(name, outcome, d)
	}
}

func (o *Orchestrator) observeCache(result string) {
	if o.metrics != nil {
		o.metrics.ObserveCache(result)
	}
}
