// Package forecasttest provides configurable signal providers for tests.
package forecasttest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

// FakeProvider returns a fixed signal after an optional delay and counts its calls.
type FakeProvider struct {
	ID          string
	Delta       float64
	Confidence  float64
	Explanation string

	// Delay is slept before answering. The sleep honours ctx unless IgnoreContext is set.
	Delay         time.Duration
	IgnoreContext bool

	// Err, when set, is returned instead of a signal.
	Err error

	// OwnTimeout is reported through Timeout when positive.
	OwnTimeout time.Duration

	calls atomic.Int64
}

// New returns a provider answering delta with the given confidence.
func New(id string, delta, confidence float64) *FakeProvider {
	return &FakeProvider{ID: id, Delta: delta, Confidence: confidence}
}

// Failing returns a provider that always fails with err.
func Failing(id string, err error) *FakeProvider {
	return &FakeProvider{ID: id, Err: err}
}

// Slow returns a provider that answers only after delay.
func Slow(id string, delay time.Duration, delta, confidence float64) *FakeProvider {
	return &FakeProvider{ID: id, Delta: delta, Confidence: confidence, Delay: delay}
}

func (p *FakeProvider) Name() string { return p.ID }

// Timeout implements forecast.TimeoutProvider.
func (p *FakeProvider) Timeout() time.Duration { return p.OwnTimeout }

// Calls reports how many times Fetch was invoked.
func (p *FakeProvider) Calls() int { return int(p.calls.Load()) }

func (p *FakeProvider) Fetch(ctx context.Context, req forecast.Request) (forecast.Signal, error) {
	p.calls.Add(1)

	if p.Delay > 0 {
		if p.IgnoreContext {
			time.Sleep(p.Delay)
		} else {
			timer := time.NewTimer(p.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return forecast.Signal{}, ctx.Err()
			case <-timer.C:
			}
		}
	}

	if p.Err != nil {
		return forecast.Signal{}, p.Err
	}

	explanation := p.Explanation
	if explanation == "" {
		explanation = fmt.Sprintf("%s: %+.1f customers/hour", p.ID, p.Delta)
	}
	return forecast.Signal{
		SourceID:     p.ID,
		DeltaPerHour: p.Delta,
		Confidence:   p.Confidence,
		Explanation:  explanation,
	}, nil
}
