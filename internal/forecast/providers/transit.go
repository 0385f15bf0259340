package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

const TransitName = "mta_subway"

const (
	transitWindowMinutes      = 20
	footTrafficPerScoreUnit   = 35.0
	conversionRateToCustomers = 0.08
)

// TransitConfig configures the subway crowding provider. Sources are file paths or http(s) URLs.
type TransitConfig struct {
	LiveSource     string
	BaselineSource string

	Timeout time.Duration
	Backoff BackoffConfig
}

// TransitProvider compares live train busyness near the storefront with the
// same window of a 24h baseline and converts the surplus into customers.
type TransitProvider struct {
	base
	liveSource     string
	baselineSource string
}

func NewTransitProvider(client *http.Client, cfg TransitConfig) *TransitProvider {
	return &TransitProvider{
		base:           newBase(TransitName, cfg.Timeout, client, cfg.Backoff),
		liveSource:     cfg.LiveSource,
		baselineSource: cfg.BaselineSource,
	}
}

type trainArrival struct {
	RouteID     string  `json:"route_id"`
	ArrivalTS   int64   `json:"arrival_ts"`
	BusyScore   float64 `json:"busy_score_0_to_1"`
	Bunching    bool    `json:"bunching"`
	DelayMin    float64 `json:"delay_min"`
	MinutesAway float64 `json:"minutes_away"`
}

type trainFeed struct {
	GeneratedAt string         `json:"generated_at"`
	Trains      []trainArrival `json:"trains"`
}

type windowSummary struct {
	TrainCount   int
	ScoreSum     float64
	BunchedCount int
	DelayedCount int
	TopRoutes    []string
}

func (p *TransitProvider) Fetch(ctx context.Context, req forecast.Request) (forecast.Signal, error) {
	var live, baseline trainFeed
	if err := loadJSONSource(ctx, p.httpCfg, p.circuit, p.liveSource, &live); err != nil {
		return forecast.Signal{}, fmt.Errorf("live feed: %w", err)
	}
	if err := loadJSONSource(ctx, p.httpCfg, p.circuit, p.baselineSource, &baseline); err != nil {
		return forecast.Signal{}, fmt.Errorf("baseline feed: %w", err)
	}
	if len(live.Trains) == 0 {
		return forecast.Signal{}, fmt.Errorf("%w: live feed has no trains", errNoData)
	}

	generated, err := time.Parse(time.RFC3339, live.GeneratedAt)
	if err != nil {
		return forecast.Signal{}, fmt.Errorf("live feed generated_at: %w", err)
	}
	generated = generated.UTC()

	liveSummary := summarizeWindow(live.Trains)
	baseSummary := summarizeWindow(baselineWindow(baseline.Trains, generated.Hour(), transitWindowMinutes))

	deltaScore := math.Max(liveSummary.ScoreSum-baseSummary.ScoreSum, 0)
	extra30 := math.Round(deltaScore * footTrafficPerScoreUnit * conversionRateToCustomers)
	hourly := extra30 * 2

	confidence := transitConfidence(liveSummary, req.TargetTime.Sub(generated))

	return forecast.Signal{
		SourceID:     p.name,
		DeltaPerHour: hourly,
		Confidence:   confidence,
		Explanation: fmt.Sprintf("%s: live busyness %.2f vs baseline %.2f over %d trains (%d delayed, %d bunched, routes %s) → %+.0f customers/hour",
			p.name, liveSummary.ScoreSum, baseSummary.ScoreSum, liveSummary.TrainCount,
			liveSummary.DelayedCount, liveSummary.BunchedCount, strings.Join(liveSummary.TopRoutes, "/"), hourly),
	}, nil
}

// baselineWindow keeps arrivals in the given UTC hour, within its first window minutes.
func baselineWindow(trains []trainArrival, hour, window int) []trainArrival {
	var out []trainArrival
	for _, t := range trains {
		at := time.Unix(t.ArrivalTS, 0).UTC()
		if at.Hour() != hour {
			continue
		}
		minutes := float64(at.Minute()) + float64(at.Second())/60
		if minutes <= float64(window) {
			out = append(out, t)
		}
	}
	return out
}

func summarizeWindow(trains []trainArrival) windowSummary {
	s := windowSummary{TrainCount: len(trains)}
	routes := make(map[string]int)
	for _, t := range trains {
		s.ScoreSum += t.BusyScore
		if t.Bunching {
			s.BunchedCount++
		}
		if t.DelayMin >= 1 {
			s.DelayedCount++
		}
		route := t.RouteID
		if route == "" {
			route = "?"
		}
		routes[route]++
	}

	for r := range routes {
		s.TopRoutes = append(s.TopRoutes, r)
	}
	sort.Slice(s.TopRoutes, func(i, j int) bool {
		a, b := s.TopRoutes[i], s.TopRoutes[j]
		if routes[a] != routes[b] {
			return routes[a] > routes[b]
		}
		return a < b
	})
	if len(s.TopRoutes) > 5 {
		s.TopRoutes = s.TopRoutes[:5]
	}
	return s
}

// transitConfidence grows with the live sample size and drops with delays and feed staleness.
func transitConfidence(live windowSummary, age time.Duration) float64 {
	c := 0.4 + 0.04*float64(min(live.TrainCount, 10))
	if live.TrainCount > 0 && float64(live.DelayedCount)/float64(live.TrainCount) > 0.3 {
		c -= 0.1
	}
	if age.Abs() > time.Hour {
		c *= 0.5
	}
	return clamp(c, 0.1, 0.9)
}
