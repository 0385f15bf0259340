package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

const RoadTrafficName = "google_traffic"

const (
	trafficClampLow        = -15.0
	trafficClampHigh       = 30.0
	lowConfidenceThreshold = 0.35
	lowConfidenceShrink    = 0.4
	directionDeadbandSec   = 15.0
	badCongestionRatio     = 0.7
	slowdownCustomerScale  = 40.0
)

// RoadTrafficConfig configures the road congestion provider. Source is a file path or http(s) URL.
type RoadTrafficConfig struct {
	Source string

	Timeout time.Duration
	Backoff BackoffConfig
}

// RoadTrafficProvider reads a congestion snapshot of the points of interest
// around the storefront and estimates extra walk-ins from slowdowns and flow direction.
type RoadTrafficProvider struct {
	base
	source string
}

func NewRoadTrafficProvider(client *http.Client, cfg RoadTrafficConfig) *RoadTrafficProvider {
	return &RoadTrafficProvider{
		base:   newBase(RoadTrafficName, cfg.Timeout, client, cfg.Backoff),
		source: cfg.Source,
	}
}

type congestionDataset struct {
	Metadata struct {
		Timestamp      string `json:"timestamp"`
		TargetLocation string `json:"target_location"`
	} `json:"metadata"`
	PointsOfInterest []pointOfInterest `json:"points_of_interest"`
}

type pointOfInterest struct {
	Name        string   `json:"poi_name"`
	Weight      *float64 `json:"weight"`
	TrafficData struct {
		CurrentSpeed       *float64 `json:"currentSpeed"`
		FreeFlowSpeed      *float64 `json:"freeFlowSpeed"`
		CurrentTravelTime  *float64 `json:"currentTravelTime"`
		FreeFlowTravelTime *float64 `json:"freeFlowTravelTime"`
		Confidence         *float64 `json:"confidence"`
		RoadClosure        bool     `json:"roadClosure"`
	} `json:"traffic_data"`
	DirectionalTraffic struct {
		ToCafe   directionalDelay `json:"to_cafe"`
		FromCafe directionalDelay `json:"from_cafe"`
	} `json:"directional_traffic"`
}

type directionalDelay struct {
	TrafficDelayInSeconds *float64 `json:"trafficDelayInSeconds"`
}

// congestionFeatures summarizes a dataset. Nil pointers mean the input had no such data.
type congestionFeatures struct {
	AvgCongestionRatio *float64
	AvgTravelTimeDelta *float64
	InboundDelay       *float64
	OutboundDelay      *float64
	DirectionBias      *float64
	DominantDirection  string
	RoadClosures       int
	ConfidenceAvg      *float64
	BadCongestionShare *float64
	POICount           int
}

type weighted struct{ v, w float64 }

func weightedAvg(pairs []weighted) *float64 {
	var num, den float64
	for _, p := range pairs {
		num += p.v * p.w
		den += p.w
	}
	if den == 0 {
		return nil
	}
	avg := num / den
	return &avg
}

func extractFeatures(ds congestionDataset) congestionFeatures {
	f := congestionFeatures{POICount: len(ds.PointsOfInterest), DominantDirection: "unknown"}

	var ratios, ttDeltas, inbound, outbound []weighted
	var confidences []float64

	for _, p := range ds.PointsOfInterest {
		w := 1.0
		if p.Weight != nil {
			w = *p.Weight
		}
		td := p.TrafficData

		if td.CurrentSpeed != nil && td.FreeFlowSpeed != nil && *td.FreeFlowSpeed != 0 {
			ratios = append(ratios, weighted{*td.CurrentSpeed / *td.FreeFlowSpeed, w})
		}
		if td.CurrentTravelTime != nil && td.FreeFlowTravelTime != nil {
			ttDeltas = append(ttDeltas, weighted{*td.CurrentTravelTime - *td.FreeFlowTravelTime, w})
		}
		if td.Confidence != nil {
			confidences = append(confidences, *td.Confidence)
		}
		if td.RoadClosure {
			f.RoadClosures++
		}

		if d := p.DirectionalTraffic.ToCafe.TrafficDelayInSeconds; d != nil {
			inbound = append(inbound, weighted{*d, w})
		}
		if d := p.DirectionalTraffic.FromCafe.TrafficDelayInSeconds; d != nil {
			outbound = append(outbound, weighted{*d, w})
		}
	}

	f.AvgCongestionRatio = weightedAvg(ratios)
	f.AvgTravelTimeDelta = weightedAvg(ttDeltas)
	f.InboundDelay = weightedAvg(inbound)
	f.OutboundDelay = weightedAvg(outbound)

	if f.InboundDelay != nil && f.OutboundDelay != nil {
		bias := *f.InboundDelay - *f.OutboundDelay
		f.DirectionBias = &bias
		switch {
		case math.Abs(bias) <= directionDeadbandSec:
			f.DominantDirection = "balanced"
		case bias > 0:
			f.DominantDirection = "towards_cafe"
		default:
			f.DominantDirection = "away_from_cafe"
		}
	}

	if len(ratios) > 0 {
		bad := 0
		for _, r := range ratios {
			if r.v < badCongestionRatio {
				bad++
			}
		}
		share := float64(bad) / float64(len(ratios))
		f.BadCongestionShare = &share
	}

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		avg := sum / float64(len(confidences))
		f.ConfidenceAvg = &avg
	}
	return f
}

// estimate turns features into extra customers per hour and a confidence, before guardrails.
func (f congestionFeatures) estimate() (float64, float64) {
	slowdown := 0.0
	if f.AvgCongestionRatio != nil {
		slowdown = clamp(1-*f.AvgCongestionRatio, 0, 1)
	}

	var direction float64
	switch f.DominantDirection {
	case "towards_cafe":
		direction = 1
	case "balanced":
		direction = 0.5
	case "away_from_cafe":
		direction = -0.5
	default:
		direction = 0.25
	}

	extra := slowdown * direction * slowdownCustomerScale
	if f.BadCongestionShare != nil && *f.BadCongestionShare < 0.25 {
		extra *= 0.5
	}
	extra -= 2 * float64(f.RoadClosures)

	confidence := 0.3
	if f.ConfidenceAvg != nil {
		confidence = *f.ConfidenceAvg
		if confidence > 1 {
			confidence /= 100
		}
	}
	confidence = clamp(confidence, 0, 1) * math.Min(1, float64(f.POICount)/3)

	if confidence < 0.5 {
		extra *= 0.5
	}
	return extra, confidence
}

// applyTrafficGuardrails bounds an estimate absolutely and relative to baseline.
func applyTrafficGuardrails(extra, confidence, baseline float64) float64 {
	extra = clamp(extra, trafficClampLow, trafficClampHigh)
	if confidence < lowConfidenceThreshold {
		extra *= lowConfidenceShrink
	}
	return clamp(extra, -0.8*baseline, 1.2*baseline)
}

func (p *RoadTrafficProvider) Fetch(ctx context.Context, req forecast.Request) (forecast.Signal, error) {
	var ds congestionDataset
	if err := loadJSONSource(ctx, p.httpCfg, p.circuit, p.source, &ds); err != nil {
		return forecast.Signal{}, err
	}
	if len(ds.PointsOfInterest) == 0 {
		return forecast.Signal{}, fmt.Errorf("%w: congestion dataset has no points of interest", errNoData)
	}

	f := extractFeatures(ds)
	extra, confidence := f.estimate()
	extra = round1(applyTrafficGuardrails(extra, confidence, req.BaselineRatePerHour))

	ratio := "n/a"
	if f.AvgCongestionRatio != nil {
		ratio = fmt.Sprintf("%.2f", *f.AvgCongestionRatio)
	}
	return forecast.Signal{
		SourceID:     p.name,
		DeltaPerHour: extra,
		Confidence:   confidence,
		Explanation: fmt.Sprintf("%s: congestion ratio %s across %d POIs, flow %s, %d closure(s) → %+.1f customers/hour",
			p.name, ratio, f.POICount, f.DominantDirection, f.RoadClosures, extra),
	}, nil
}
