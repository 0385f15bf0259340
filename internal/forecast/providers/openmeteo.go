package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/common"
	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	"github.com/sony/gobreaker"
)

const WeatherEventName = "weather_event"

// WeatherEventConfig configures the weather and local events provider.
type WeatherEventConfig struct {
	// BaseURL of the Open-Meteo forecast endpoint.
	BaseURL string
	// EventsURL is an optional permitted-events feed (Socrata JSON). Empty disables events.
	EventsURL     string
	EventsBorough string
	VenueKeywords []string

	Timeout time.Duration
	Backoff BackoffConfig
	Now     func() time.Time
}

// WeatherEventProvider turns the Open-Meteo hourly forecast for the target hour,
// plus nearby permitted outdoor events, into a demand delta.
type WeatherEventProvider struct {
	base
	baseURL       string
	eventsURL     string
	eventsBorough string
	keywords      []string
	eventsCircuit *gobreaker.CircuitBreaker
	now           func() time.Time
}

func NewWeatherEventProvider(client *http.Client, cfg WeatherEventConfig) *WeatherEventProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if len(cfg.VenueKeywords) == 0 {
		cfg.VenueKeywords = []string{"park", "field", "playground", "plgd"}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &WeatherEventProvider{
		base:          newBase(WeatherEventName, cfg.Timeout, client, cfg.Backoff),
		baseURL:       cfg.BaseURL,
		eventsURL:     cfg.EventsURL,
		eventsBorough: cfg.EventsBorough,
		keywords:      cfg.VenueKeywords,
		eventsCircuit: newBreaker(WeatherEventName + "_events"),
		now:           cfg.Now,
	}
}

type openMeteoResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Hourly           struct {
		Time                     []string   `json:"time"`
		Temperature              []*float64 `json:"temperature_2m"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		WeatherCode              []*int     `json:"weather_code"`
	} `json:"hourly"`
}

// hourlyWeather is the forecast for one hour.
type hourlyWeather struct {
	TemperatureF  float64
	PrecipProbPct float64
	Code          int
	Condition     string
}

func (p *WeatherEventProvider) Fetch(ctx context.Context, req forecast.Request) (forecast.Signal, error) {
	target := req.TargetTime.UTC().Truncate(time.Hour)

	wx, offset, err := p.fetchHour(ctx, req.Location, target)
	if err != nil {
		return forecast.Signal{}, err
	}
	local := target.In(time.FixedZone("local", offset))

	pct, reasons := weatherImpact(wx, local.Hour())
	confidence := horizonConfidence(target.Sub(p.now()))

	if p.eventsURL != "" {
		n, err := p.countEvents(ctx, local)
		switch {
		case err != nil:
			confidence -= 0.05
			reasons = append(reasons, "events feed unavailable")
		case n > 0:
			pct += float64(min(n, 3)) * 8
			reasons = append(reasons, fmt.Sprintf("%d outdoor event(s) nearby", n))
		}
	}

	delta := round1(req.BaselineRatePerHour * pct / 100)
	return forecast.Signal{
		SourceID:     p.name,
		DeltaPerHour: delta,
		Confidence:   clamp(confidence, 0, 1),
		Explanation: fmt.Sprintf("%s at %s: %s, %.0f°F, %.0f%% precipitation; %s → %+.1f customers/hour",
			p.name, local.Format("15:04"), wx.Condition, wx.TemperatureF, wx.PrecipProbPct,
			strings.Join(reasons, ", "), delta),
	}, nil
}

func (p *WeatherEventProvider) fetchHour(ctx context.Context, loc forecast.Location, target time.Time) (hourlyWeather, int, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", loc.Latitude))
		values.Set("longitude", fmt.Sprintf("%f", loc.Longitude))
		values.Set("hourly", "temperature_2m,precipitation_probability,weather_code")
		values.Set("temperature_unit", "fahrenheit")
		values.Set("timezone", "auto")
		// Local dates can differ from the UTC date by one day either way.
		values.Set("start_date", target.AddDate(0, 0, -1).Format("2006-01-02"))
		values.Set("end_date", target.AddDate(0, 0, 1).Format("2006-01-02"))

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	var payload openMeteoResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, build, &payload); err != nil {
		return hourlyWeather{}, 0, err
	}

	offset := payload.UTCOffsetSeconds
	want := target.In(time.FixedZone("local", offset)).Format("2006-01-02T15:04")

	h := payload.Hourly
	for i, ts := range h.Time {
		if ts != want {
			continue
		}
		if i >= len(h.WeatherCode) || h.WeatherCode[i] == nil || i >= len(h.Temperature) || h.Temperature[i] == nil {
			return hourlyWeather{}, 0, fmt.Errorf("%w: incomplete hour %s", errNoData, ts)
		}
		wx := hourlyWeather{
			TemperatureF: *h.Temperature[i],
			Code:         *h.WeatherCode[i],
		}
		if i < len(h.PrecipitationProbability) && h.PrecipitationProbability[i] != nil {
			wx.PrecipProbPct = *h.PrecipitationProbability[i]
		}
		wx.Condition = conditionLabel(wx.Code)
		return wx, offset, nil
	}
	return hourlyWeather{}, 0, fmt.Errorf("%w: %s not in forecast", errNoData, want)
}

// weatherImpact maps one hour of weather to a percentage of baseline demand.
func weatherImpact(wx hourlyWeather, localHour int) (float64, []string) {
	var (
		pct     float64
		reasons []string
	)

	switch code := wx.Code; {
	case code <= 1:
		pct += 10
		reasons = append(reasons, "clear skies")
	case code <= 3:
	case code == 45 || code == 48:
		pct -= 5
		reasons = append(reasons, "fog")
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		pct -= 15
		reasons = append(reasons, "rain")
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		pct -= 25
		reasons = append(reasons, "snow")
	case code >= 95:
		pct -= 35
		reasons = append(reasons, "thunderstorm")
	}

	switch t := wx.TemperatureF; {
	case t < 32:
		pct -= 10
		reasons = append(reasons, "freezing")
	case t > 90:
		pct -= 5
		reasons = append(reasons, "very hot")
	case t >= 60 && t <= 80:
		pct += 5
		reasons = append(reasons, "mild temperature")
	}

	if wx.PrecipProbPct > 60 {
		pct -= 5
		reasons = append(reasons, "likely precipitation")
	}

	if localHour >= 17 && localHour <= 20 {
		pct += 5
		reasons = append(reasons, "evening peak")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "typical conditions")
	}
	return pct, reasons
}

// horizonConfidence decays with how far ahead the target hour lies.
func horizonConfidence(ahead time.Duration) float64 {
	hours := math.Max(0, ahead.Hours())
	return clamp(0.85-0.004*hours, 0.35, 0.85)
}

func conditionLabel(code int) string {
	if label, ok := weatherCodeLabels[code]; ok {
		return label
	}
	return "Unknown"
}

var weatherCodeLabels = map[int]string{
	0:  "Clear",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

type permittedEvent struct {
	EventName     string `json:"event_name"`
	StartDateTime string `json:"start_date_time"`
	EndDateTime   string `json:"end_date_time"`
	EventType     string `json:"event_type"`
	EventLocation string `json:"event_location"`
	EventBorough  string `json:"event_borough"`
}

// Socrata floating timestamps carry no zone; they are local to the city.
var socrataLayouts = []string{"2006-01-02T15:04:05.000", "2006-01-02T15:04:05"}

func parseFloating(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range socrataLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// countEvents counts outdoor venue events overlapping the local target hour.
func (p *WeatherEventProvider) countEvents(ctx context.Context, local time.Time) (int, error) {
	hourStart := local
	hourEnd := local.Add(time.Hour)

	build := func(ctx context.Context) (*http.Request, error) {
		where := fmt.Sprintf("start_date_time < '%s' AND end_date_time > '%s'",
			hourEnd.Format("2006-01-02T15:04:05"), hourStart.Format("2006-01-02T15:04:05"))
		if p.eventsBorough != "" {
			where += fmt.Sprintf(" AND event_borough = '%s'", p.eventsBorough)
		}
		values := url.Values{}
		values.Set("$where", where)
		values.Set("$limit", "500")
		return http.NewRequestWithContext(ctx, http.MethodGet, p.eventsURL+"?"+values.Encode(), nil)
	}

	var events []permittedEvent
	if err := getJSON(ctx, p.httpCfg, p.eventsCircuit, build, &events); err != nil {
		return 0, err
	}

	n := 0
	for _, e := range events {
		start, ok1 := parseFloating(e.StartDateTime, local.Location())
		end, ok2 := parseFloating(e.EndDateTime, local.Location())
		if !ok1 || !ok2 || !start.Before(hourEnd) || !end.After(hourStart) {
			continue
		}
		if p.eventsBorough != "" && !strings.EqualFold(e.EventBorough, p.eventsBorough) {
			continue
		}
		if common.ContainsAnyFold(e.EventLocation, p.keywords...) {
			n++
		}
	}
	return n, nil
}
