package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast/providers"
)

var validate = validator.New()

type AppConfig struct {
	Port string    `yaml:"port" default:"8080" validate:"required,numeric"`
	Log  LogConfig `yaml:"log"`

	Forecast ForecastConfig `yaml:"forecast"`
	Location LocationConfig `yaml:"location"`
	Cache    CacheConfig    `yaml:"cache"`
	History  HistoryConfig  `yaml:"history"`

	Providers ProvidersConfig `yaml:"providers"`
	Warmup    WarmupConfig    `yaml:"warmup"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type ForecastConfig struct {
	Deadline        time.Duration `yaml:"deadline" default:"20s" validate:"gt=0"`
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"30m" validate:"gt=0"`
	TimeZone        string        `yaml:"time_zone" default:"America/New_York" validate:"required"`
	DedupeInflight  bool          `yaml:"dedupe_inflight"`
	DefaultBaseline float64       `yaml:"default_baseline" default:"42" validate:"gt=0"`
}

// LocationConfig is the storefront. When Address is set and a geocoder key is
// available, coordinates are resolved from it at startup.
type LocationConfig struct {
	Name           string  `yaml:"name" default:"storefront"`
	Latitude       float64 `yaml:"latitude" default:"40.770530" validate:"min=-90,max=90"`
	Longitude      float64 `yaml:"longitude" default:"-73.982456" validate:"min=-180,max=180"`
	Address        string  `yaml:"address"`
	City           string  `yaml:"city"`
	Country        string  `yaml:"country"`
	GeocoderAPIKey string  `yaml:"geocoder_api_key"`
}

type CacheConfig struct {
	Backend    string      `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	MaxEntries int         `yaml:"max_entries" default:"1024" validate:"gte=0"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" default:"demand-fusion"`
}

type HistoryConfig struct {
	Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory sqlite none"`
	MaxRecords int           `yaml:"max_records" default:"500" validate:"gte=0"` // 0 = unlimited
	MaxAge     time.Duration `yaml:"max_age" default:"24h" validate:"gte=0"`     // 0 = unlimited
	SQLitePath string        `yaml:"sqlite_path" default:"demand-fusion.db"`
}

type ProvidersConfig struct {
	HTTPTimeout time.Duration `yaml:"http_timeout" default:"15s" validate:"gt=0"`
	MaxRetries  int           `yaml:"max_retries" validate:"gte=0"`

	Weather WeatherConfig    `yaml:"weather"`
	Transit TransitConfig    `yaml:"transit"`
	Traffic TrafficConfig    `yaml:"traffic"`
	Remote  []RemoteProvider `yaml:"remote" validate:"unique=Name,dive"`
}

type WeatherConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	BaseURL       string        `yaml:"base_url" default:"https://api.open-meteo.com/v1/forecast" validate:"omitempty,url"`
	EventsURL     string        `yaml:"events_url" validate:"omitempty,url"`
	EventsBorough string        `yaml:"events_borough" default:"Manhattan"`
	Timeout       time.Duration `yaml:"timeout" default:"8s"`
}

// TransitConfig sources are file paths or http(s) URLs. The provider is
// registered only when both are set.
type TransitConfig struct {
	LiveSource     string        `yaml:"live_source"`
	BaselineSource string        `yaml:"baseline_source"`
	Timeout        time.Duration `yaml:"timeout" default:"5s"`
}

type TrafficConfig struct {
	Source  string        `yaml:"source"`
	Timeout time.Duration `yaml:"timeout" default:"5s"`
}

type RemoteProvider struct {
	Name    string        `yaml:"name" validate:"required"`
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WarmupConfig struct {
	Interval  time.Duration `yaml:"interval" default:"15m" validate:"gt=0"`
	Baselines []float64     `yaml:"baselines" validate:"dive,gt=0"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and environment variables, in that order of precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags, that the time zone exists and that remote
// provider names do not collide with the built-in providers.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := time.LoadLocation(c.Forecast.TimeZone); err != nil {
		return fmt.Errorf("validate config: time zone %q: %w", c.Forecast.TimeZone, err)
	}
	for _, r := range c.Providers.Remote {
		switch r.Name {
		case providers.WeatherEventName, providers.TransitName, providers.RoadTrafficName:
			return fmt.Errorf("validate config: remote provider name %q is reserved", r.Name)
		}
	}
	return nil
}

// TimeZone returns the location used for hour bucketing. Call after Validate.
func (c *AppConfig) TimeZone() *time.Location {
	loc, err := time.LoadLocation(c.Forecast.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *AppConfig) applyEnv() error {
	c.Port = getenvDefault("PORT", c.Port)
	c.Log.Level = getenvDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenvDefault("LOG_FORMAT", c.Log.Format)
	c.Log.Output = getenvDefault("LOG_OUTPUT", c.Log.Output)

	var err error
	if c.Forecast.Deadline, err = getenvDuration("FORECAST_DEADLINE", c.Forecast.Deadline); err != nil {
		return err
	}
	if c.Forecast.CacheTTL, err = getenvDuration("CACHE_TTL", c.Forecast.CacheTTL); err != nil {
		return err
	}
	c.Forecast.TimeZone = getenvDefault("TIME_ZONE", c.Forecast.TimeZone)
	if c.Forecast.DedupeInflight, err = getenvBool("DEDUPE_INFLIGHT", c.Forecast.DedupeInflight); err != nil {
		return err
	}
	if c.Forecast.DefaultBaseline, err = getenvFloat("DEFAULT_BASELINE", c.Forecast.DefaultBaseline); err != nil {
		return err
	}

	c.Location.Name = getenvDefault("LOCATION_NAME", c.Location.Name)
	if c.Location.Latitude, err = getenvFloat("LOCATION_LAT", c.Location.Latitude); err != nil {
		return err
	}
	if c.Location.Longitude, err = getenvFloat("LOCATION_LON", c.Location.Longitude); err != nil {
		return err
	}
	c.Location.Address = getenvDefault("LOCATION_ADDRESS", c.Location.Address)
	c.Location.City = getenvDefault("LOCATION_CITY", c.Location.City)
	c.Location.Country = getenvDefault("LOCATION_COUNTRY", c.Location.Country)
	c.Location.GeocoderAPIKey = getenvDefault("GEOCODER_API_KEY", c.Location.GeocoderAPIKey)

	c.Cache.Backend = getenvDefault("CACHE_BACKEND", c.Cache.Backend)
	if c.Cache.MaxEntries, err = getenvInt("CACHE_MAX_ENTRIES", c.Cache.MaxEntries); err != nil {
		return err
	}
	c.Cache.Redis.Addr = getenvDefault("REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.Password = getenvDefault("REDIS_PASSWORD", c.Cache.Redis.Password)
	if c.Cache.Redis.DB, err = getenvInt("REDIS_DB", c.Cache.Redis.DB); err != nil {
		return err
	}

	c.History.Backend = getenvDefault("HISTORY_BACKEND", c.History.Backend)
	if c.History.MaxRecords, err = getenvInt("HISTORY_MAX_RECORDS", c.History.MaxRecords); err != nil {
		return err
	}
	if c.History.MaxAge, err = getenvDuration("HISTORY_MAX_AGE", c.History.MaxAge); err != nil {
		return err
	}
	c.History.SQLitePath = getenvDefault("HISTORY_SQLITE_PATH", c.History.SQLitePath)

	if c.Providers.MaxRetries, err = getenvInt("PROVIDER_MAX_RETRIES", c.Providers.MaxRetries); err != nil {
		return err
	}
	if c.Providers.Weather.Enabled, err = getenvBool("WEATHER_ENABLED", c.Providers.Weather.Enabled); err != nil {
		return err
	}
	c.Providers.Weather.EventsURL = getenvDefault("EVENTS_URL", c.Providers.Weather.EventsURL)
	c.Providers.Transit.LiveSource = getenvDefault("TRANSIT_LIVE_SOURCE", c.Providers.Transit.LiveSource)
	c.Providers.Transit.BaselineSource = getenvDefault("TRANSIT_BASELINE_SOURCE", c.Providers.Transit.BaselineSource)
	c.Providers.Traffic.Source = getenvDefault("TRAFFIC_SOURCE", c.Providers.Traffic.Source)

	if v := os.Getenv("REMOTE_PROVIDERS"); v != "" {
		remote, err := parseRemoteProviders(v)
		if err != nil {
			return err
		}
		c.Providers.Remote = remote
	}

	if c.Warmup.Interval, err = getenvDuration("WARMUP_INTERVAL", c.Warmup.Interval); err != nil {
		return err
	}
	if v := os.Getenv("WARMUP_BASELINES"); v != "" {
		baselines, err := parseFloats(v)
		if err != nil {
			return fmt.Errorf("invalid WARMUP_BASELINES: %w", err)
		}
		c.Warmup.Baselines = baselines
	}
	return nil
}

// parseRemoteProviders reads "name=url,name=url".
func parseRemoteProviders(s string) ([]RemoteProvider, error) {
	var out []RemoteProvider
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, url, ok := strings.Cut(item, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid REMOTE_PROVIDERS entry %q: want name=url", item)
		}
		out = append(out, RemoteProvider{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
