package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

var validate = validator.New()

// ForecastService is what the HTTP layer needs from forecast.Service.
type ForecastService interface {
	Forecast(ctx context.Context, req forecast.Request) (forecast.FusedForecast, error)
	Latest(ctx context.Context) (forecast.HistoryRecord, error)
	Range(ctx context.Context, from, to time.Time) ([]forecast.HistoryRecord, error)
	Providers() []forecast.ProviderInfo
	TimeZone() *time.Location
}

// Options carries the request defaults and the metrics source.
type Options struct {
	Location        forecast.Location
	DefaultBaseline float64
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

// ErrorHandler renders every failure as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service ForecastService, opts Options) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handler{service: service, opts: opts}

	app.Use(requestContext)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "demand-fusion",
			"providers": len(service.Providers()),
		})
	})
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	v1.Get("/forecast", h.getForecast)
	v1.Post("/forecast", h.postForecast)
	v1.Get("/forecast/latest", h.latest)
	v1.Get("/forecast/history", h.history)
	v1.Get("/providers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"providers": service.Providers()})
	})
}

// requestContext gives each request a context derived from the server's, so
// shutdown cancels in-flight provider calls. fasthttp does not report client
// disconnects; an abandoned request still runs until the forecast deadline.
func requestContext(c *fiber.Ctx) error {
	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()
	c.SetUserContext(ctx)
	return c.Next()
}

type handler struct {
	service ForecastService
	opts    Options
}

// forecastQuery is accepted both as query parameters and as a JSON body.
type forecastQuery struct {
	Baseline float64 `json:"baselineRatePerHour" validate:"gt=0"`
	Date     string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Hour     *int    `json:"hour" validate:"omitempty,min=0,max=23"`
}

func (h *handler) getForecast(c *fiber.Ctx) error {
	q := forecastQuery{Baseline: h.opts.DefaultBaseline, Date: c.Query("date")}

	if s := c.Query("baseline"); s != "" {
		b, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "baseline must be a number")
		}
		q.Baseline = b
	}
	if s := c.Query("hour"); s != "" {
		hour, err := strconv.Atoi(s)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "hour must be an integer between 0 and 23")
		}
		q.Hour = &hour
	}

	return h.forecast(c, q)
}

func (h *handler) postForecast(c *fiber.Ctx) error {
	q := forecastQuery{}
	if err := c.BodyParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if q.Baseline == 0 {
		q.Baseline = h.opts.DefaultBaseline
	}
	return h.forecast(c, q)
}

func (h *handler) forecast(c *fiber.Ctx, q forecastQuery) error {
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	target, err := forecast.ResolveTargetTime(q.Date, q.Hour, h.opts.Now(), h.service.TimeZone())
	if err != nil {
		return toHTTPError(err)
	}

	f, err := h.service.Forecast(c.UserContext(), forecast.Request{
		Location:            h.opts.Location,
		TargetTime:          target,
		BaselineRatePerHour: q.Baseline,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(f)
}

func (h *handler) latest(c *fiber.Ctx) error {
	rec, err := h.service.Latest(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(rec)
}

func (h *handler) history(c *fiber.Ctx) error {
	var req historyQuery
	if err := req.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.Range(c.UserContext(), req.From, req.To)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{
		"from":      req.From,
		"to":        req.To,
		"forecasts": records,
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, forecast.ErrInvalidRequest):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, forecast.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no forecast history")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to produce forecast")
	}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
