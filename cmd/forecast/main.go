// Command forecast prints one fused demand forecast as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"github.com/OmRanAlot/BrownHacks2026/internal/app"
	"github.com/OmRanAlot/BrownHacks2026/internal/config"
	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	applog "github.com/OmRanAlot/BrownHacks2026/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	baseline := flag.Float64("baseline", 0, "baseline customers per hour (default from config)")
	date := flag.String("date", "", "target date, YYYY-MM-DD (default today)")
	hour := flag.Int("hour", 0, "target hour 0-23 (default current hour)")
	verbose := flag.Bool("v", false, "log provider activity to stderr")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := zerolog.Nop()
	if *verbose {
		l, closer, err := applog.New(applog.Config{Level: "debug", Format: "console", Output: "stderr"})
		if err != nil {
			return err
		}
		defer closer.Close()
		log = l
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var h *int
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "hour" {
			h = hour
		}
	})
	target, err := forecast.ResolveTargetTime(*date, h, time.Now(), a.Service.TimeZone())
	if err != nil {
		return err
	}

	b := *baseline
	if b == 0 {
		b = cfg.Forecast.DefaultBaseline
	}

	f, err := a.Service.Forecast(ctx, forecast.Request{
		Location:            a.Location,
		TargetTime:          target,
		BaselineRatePerHour: b,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}
