package forecast

import "math"

const (
	// FloorWeight keeps a zero-confidence signal in the average with negligible weight.
	FloorWeight = 0.05

	// FallbackConfidence is the confidence carried by a substituted signal.
	FallbackConfidence = 0.05

	// Guardrail factors relative to the baseline rate.
	GuardrailLow  = -0.5
	GuardrailHigh = 1.5
)

// Fusion holds the computed part of a FusedForecast.
type Fusion struct {
	ExtraPerHour      float64
	TotalPerHour      float64
	OverallConfidence float64
	Label             SummaryLabel
}

// Fuse combines signals into a guarded confidence-weighted estimate.
// It is deterministic and has no side effects; the order of signals does not
// change the result beyond floating point summation order.
func Fuse(signals []Signal, baseline float64) Fusion {
	var weightedSum, weightTotal float64

	for _, s := range signals {
		w := math.Max(FloorWeight, ClampConfidence(s.Confidence))
		weightedSum += s.DeltaPerHour * w
		weightTotal += w
	}

	extra := 0.0
	if weightTotal > 0 {
		extra = weightedSum / weightTotal
	}
	if math.IsNaN(extra) {
		// Opposing infinite deltas cancel into NaN; treat them as no information.
		extra = 0
	}
	extra = clamp(extra, GuardrailLow*baseline, GuardrailHigh*baseline)

	confidence := 0.0
	if len(signals) > 0 {
		confidence = math.Min(1.0, weightTotal/float64(len(signals)))
	}

	return Fusion{
		ExtraPerHour:      extra,
		TotalPerHour:      baseline + extra,
		OverallConfidence: confidence,
		Label:             LabelFor(extra, baseline),
	}
}

// LabelFor buckets the percentage delta. Boundary values belong to the higher bucket.
func LabelFor(extra, baseline float64) SummaryLabel {
	pct := 0.0
	if baseline != 0 {
		pct = extra / baseline * 100
	}
	switch {
	case pct >= 50:
		return LabelMuchHigher
	case pct >= 15:
		return LabelAboveBaseline
	case pct >= -15:
		return LabelOnPar
	case pct >= -40:
		return LabelBelowBaseline
	default:
		return LabelMuchLower
	}
}

// ClampConfidence forces a confidence into [0,1]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return clamp(c, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}
