package forecast

import (
	"fmt"
	"time"
)

// SummaryLabel is the qualitative bucket of a fused forecast relative to baseline.
type SummaryLabel string

const (
	LabelMuchHigher    SummaryLabel = "MuchHigher"
	LabelAboveBaseline SummaryLabel = "AboveBaseline"
	LabelOnPar         SummaryLabel = "OnPar"
	LabelBelowBaseline SummaryLabel = "BelowBaseline"
	LabelMuchLower     SummaryLabel = "MuchLower"
)

// Description returns the human-readable phrase shown next to the label.
func (l SummaryLabel) Description() string {
	switch l {
	case LabelMuchHigher:
		return "Much higher than usual"
	case LabelAboveBaseline:
		return "Above baseline today"
	case LabelOnPar:
		return "On par with usual"
	case LabelBelowBaseline:
		return "Below baseline today"
	case LabelMuchLower:
		return "Much lower than usual"
	default:
		return "Unknown"
	}
}

// Location identifies the storefront a forecast is produced for.
type Location struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// Request is the immutable input of a single forecast call.
// A zero TargetTime means "now".
type Request struct {
	Location            Location  `json:"location"`
	TargetTime          time.Time `json:"targetTime"`
	BaselineRatePerHour float64   `json:"baselineRatePerHour"`
}

// Signal is one provider's estimate of demand deviation from baseline.
type Signal struct {
	SourceID     string  `json:"source"`
	DeltaPerHour float64 `json:"deltaPerHour"`
	Confidence   float64 `json:"confidence"`
	Explanation  string  `json:"explanation"`
	Succeeded    bool    `json:"succeeded"`
}

// FusedForecast is the combined forecast returned to callers.
type FusedForecast struct {
	BaselineRatePerHour float64      `json:"baselineRatePerHour"`
	ExtraPerHour        float64      `json:"extraPerHour"`
	TotalPerHour        float64      `json:"totalPerHour"`
	OverallConfidence   float64      `json:"overallConfidence"`
	SummaryLabel        SummaryLabel `json:"summaryLabel"`
	Summary             string       `json:"summary"`
	Signals             []Signal     `json:"signals"`
	TargetTime          time.Time    `json:"targetTime"`
	GeneratedAt         time.Time    `json:"generatedAt"` // always UTC

	// Cached is set on the copy handed back from a cache hit; stored values never carry it.
	Cached bool `json:"cached"`
}

// Degraded reports how many signals were substituted by fallbacks.
func (f FusedForecast) Degraded() int {
	n := 0
	for _, s := range f.Signals {
		if !s.Succeeded {
			n++
		}
	}
	return n
}

// HistoryRecord is a freshly computed forecast kept for later inspection.
type HistoryRecord struct {
	ID          string        `json:"id"`
	Fingerprint string        `json:"fingerprint"`
	Forecast    FusedForecast `json:"forecast"`
}
