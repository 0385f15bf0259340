package providers

import (
	"testing"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func poi(name string, weight, speed, freeFlow, confidence, toCafe, fromCafe float64) pointOfInterest {
	var p pointOfInterest
	p.Name = name
	p.Weight = ptr(weight)
	p.TrafficData.CurrentSpeed = ptr(speed)
	p.TrafficData.FreeFlowSpeed = ptr(freeFlow)
	p.TrafficData.CurrentTravelTime = ptr(120)
	p.TrafficData.FreeFlowTravelTime = ptr(90)
	p.TrafficData.Confidence = ptr(confidence)
	p.DirectionalTraffic.ToCafe.TrafficDelayInSeconds = ptr(toCafe)
	p.DirectionalTraffic.FromCafe.TrafficDelayInSeconds = ptr(fromCafe)
	return p
}

func congestedDataset() congestionDataset {
	var ds congestionDataset
	ds.Metadata.Timestamp = "2026-01-02T18:00:00Z"
	ds.PointsOfInterest = []pointOfInterest{
		poi("Columbus Circle", 1, 10, 20, 0.9, 60, 10),
		poi("Lincoln Center", 1, 12, 20, 0.8, 60, 10),
		poi("Broadway & 65th", 2, 18, 20, 1.0, 30, 10),
	}
	return ds
}

func TestExtractFeatures(t *testing.T) {
	t.Parallel()

	f := extractFeatures(congestedDataset())

	require.InDelta(t, 0.725, *f.AvgCongestionRatio, 1e-9)
	require.InDelta(t, 30, *f.AvgTravelTimeDelta, 1e-9)
	require.InDelta(t, 45, *f.InboundDelay, 1e-9)
	require.InDelta(t, 10, *f.OutboundDelay, 1e-9)
	require.Equal(t, "towards_cafe", f.DominantDirection)
	require.InDelta(t, 2.0/3, *f.BadCongestionShare, 1e-9)
	require.InDelta(t, 0.9, *f.ConfidenceAvg, 1e-9)
	require.Equal(t, 3, f.POICount)
}

func TestExtractFeatures_Deadband(t *testing.T) {
	t.Parallel()

	ds := congestedDataset()
	for i := range ds.PointsOfInterest {
		ds.PointsOfInterest[i].DirectionalTraffic.ToCafe.TrafficDelayInSeconds = ptr(20)
	}

	f := extractFeatures(ds)

	require.Equal(t, "balanced", f.DominantDirection)
}

func TestExtractFeatures_MissingData(t *testing.T) {
	t.Parallel()

	var ds congestionDataset
	ds.PointsOfInterest = []pointOfInterest{{Name: "bare"}}

	f := extractFeatures(ds)

	require.Nil(t, f.AvgCongestionRatio)
	require.Nil(t, f.BadCongestionShare)
	require.Equal(t, "unknown", f.DominantDirection)

	extra, confidence := f.estimate()
	require.Zero(t, extra)
	require.InDelta(t, 0.1, confidence, 1e-9)
}

func TestApplyTrafficGuardrails(t *testing.T) {
	t.Parallel()

	require.Equal(t, 30.0, applyTrafficGuardrails(100, 0.9, 42))
	require.InDelta(t, 12, applyTrafficGuardrails(100, 0.2, 42), 1e-9)
	require.Equal(t, -8.0, applyTrafficGuardrails(-50, 0.9, 10))
	require.Equal(t, 12.0, applyTrafficGuardrails(25, 0.9, 10))
}

func TestRoadTrafficProvider_Fetch(t *testing.T) {
	t.Parallel()

	// Arrange
	path := writeJSON(t, t.TempDir(), "congestion.json", congestedDataset())
	p := NewRoadTrafficProvider(nil, RoadTrafficConfig{Source: path, Timeout: 5 * time.Second})

	// Act
	sig, err := p.Fetch(t.Context(), forecast.Request{BaselineRatePerHour: 42})

	// Assert: slowdown 0.275 toward the storefront -> 11 customers/hour.
	require.NoError(t, err)
	require.Equal(t, RoadTrafficName, sig.SourceID)
	require.InDelta(t, 11, sig.DeltaPerHour, 1e-9)
	require.InDelta(t, 0.9, sig.Confidence, 1e-9)
	require.Contains(t, sig.Explanation, "towards_cafe")
	require.Equal(t, 5*time.Second, p.Timeout())
}

func TestRoadTrafficProvider_PercentConfidence(t *testing.T) {
	t.Parallel()

	ds := congestedDataset()
	for i := range ds.PointsOfInterest {
		ds.PointsOfInterest[i].TrafficData.Confidence = ptr(90)
	}
	path := writeJSON(t, t.TempDir(), "congestion.json", ds)
	p := NewRoadTrafficProvider(nil, RoadTrafficConfig{Source: path})

	sig, err := p.Fetch(t.Context(), forecast.Request{BaselineRatePerHour: 42})

	require.NoError(t, err)
	require.InDelta(t, 0.9, sig.Confidence, 1e-9)
}

func TestRoadTrafficProvider_EmptyDataset(t *testing.T) {
	t.Parallel()

	path := writeJSON(t, t.TempDir(), "congestion.json", congestionDataset{})
	p := NewRoadTrafficProvider(nil, RoadTrafficConfig{Source: path})

	_, err := p.Fetch(t.Context(), forecast.Request{BaselineRatePerHour: 42})

	require.ErrorIs(t, err, errNoData)
}
