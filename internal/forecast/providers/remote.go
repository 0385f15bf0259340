package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

// RemoteConfig configures a provider backed by an external signal service.
type RemoteConfig struct {
	Name    string
	URL     string
	Timeout time.Duration
	Backoff BackoffConfig
}

// RemoteProvider posts the request to a signal service and expects a ready-made signal back.
type RemoteProvider struct {
	base
	url string
}

func NewRemoteProvider(client *http.Client, cfg RemoteConfig) *RemoteProvider {
	return &RemoteProvider{
		base: newBase(cfg.Name, cfg.Timeout, client, cfg.Backoff),
		url:  cfg.URL,
	}
}

type remoteRequest struct {
	TargetTime          time.Time         `json:"targetTime"`
	BaselineRatePerHour float64           `json:"baselineRatePerHour"`
	Location            forecast.Location `json:"location"`
}

type remoteResponse struct {
	DeltaPerHour *float64 `json:"deltaPerHour"`
	Confidence   *float64 `json:"confidence"`
	Explanation  string   `json:"explanation"`
}

func (p *RemoteProvider) Fetch(ctx context.Context, req forecast.Request) (forecast.Signal, error) {
	body, err := json.Marshal(remoteRequest{
		TargetTime:          req.TargetTime,
		BaselineRatePerHour: req.BaselineRatePerHour,
		Location:            req.Location,
	})
	if err != nil {
		return forecast.Signal{}, err
	}

	build := func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Accept", "application/json")
		return r, nil
	}

	var out remoteResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, build, &out); err != nil {
		return forecast.Signal{}, err
	}
	if out.DeltaPerHour == nil || out.Confidence == nil {
		return forecast.Signal{}, fmt.Errorf("remote %s: response missing deltaPerHour or confidence", p.name)
	}

	explanation := out.Explanation
	if explanation == "" {
		explanation = fmt.Sprintf("%s: %+.1f customers/hour", p.name, *out.DeltaPerHour)
	}
	return forecast.Signal{
		SourceID:     p.name,
		DeltaPerHour: *out.DeltaPerHour,
		Confidence:   *out.Confidence,
		Explanation:  explanation,
	}, nil
}
