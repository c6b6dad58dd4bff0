package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
)

var validate = validator.New()

// AppConfig is the full runtime configuration. Defaults reproduce the
// Trident Pier deployment for Oct 8-12, 2024.
type AppConfig struct {
	AppEnv   string `yaml:"app_env" validate:"oneof=dev prod"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	Port     string `yaml:"port" validate:"required,numeric"`

	NOAABaseURL string `yaml:"noaa_base_url" validate:"required,url"`
	StationID   string `yaml:"station_id" validate:"required,numeric"`
	StationName string `yaml:"station_name" validate:"required"`
	BeginDate   string `yaml:"begin_date" validate:"required,len=8,numeric"`
	EndDate     string `yaml:"end_date" validate:"required,len=8,numeric"`
	Datum       string `yaml:"datum" validate:"required"`
	TimeZone    string `yaml:"time_zone" validate:"oneof=gmt"`
	Units       string `yaml:"units" validate:"oneof=metric english"`

	// Parameters to fetch, in display order.
	Parameters []string `yaml:"parameters" validate:"min=1,unique,dive,oneof=wind air_pressure water_level tide_predictions water_temperature air_temperature"`

	HTTPTimeout     time.Duration `yaml:"http_timeout" validate:"gt=0"`
	FetchMaxRetries int           `yaml:"fetch_max_retries" validate:"gte=0,lte=10"`
	FetchBackoff    time.Duration `yaml:"fetch_backoff" validate:"gt=0"`
	FetchMaxBackoff time.Duration `yaml:"fetch_max_backoff" validate:"gtefield=FetchBackoff"`

	PlaybackDelay     time.Duration `yaml:"playback_delay" validate:"gte=0"`
	PlaybackPacing    string        `yaml:"playback_pacing" validate:"oneof=fixed scaled"`
	PlaybackSpeedup   float64       `yaml:"playback_speedup" validate:"gt=0"`
	PlaybackAutostart bool          `yaml:"playback_autostart"`

	// ReplayInterval restarts a finished replay periodically (0 = disabled).
	ReplayInterval time.Duration `yaml:"replay_interval" validate:"gte=0"`

	MQTTBroker      string `yaml:"mqtt_broker" validate:"omitempty,url"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix" validate:"required"`
}

func defaults() *AppConfig {
	params := make([]string, 0, 6)
	for _, p := range station.DefaultParameters() {
		params = append(params, string(p.Name))
	}
	return &AppConfig{
		AppEnv:   "dev",
		LogLevel: "info",
		Port:     "8080",

		NOAABaseURL: "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter",
		StationID:   "8721604",
		StationName: "Trident Pier",
		BeginDate:   "20241008",
		EndDate:     "20241012",
		Datum:       "MHHW",
		TimeZone:    "gmt",
		Units:       "metric",
		Parameters:  params,

		HTTPTimeout:     15 * time.Second,
		FetchMaxRetries: 3,
		FetchBackoff:    500 * time.Millisecond,
		FetchMaxBackoff: 5 * time.Second,

		PlaybackDelay:     30 * time.Millisecond,
		PlaybackPacing:    "fixed",
		PlaybackSpeedup:   12000,
		PlaybackAutostart: true,

		MQTTClientID:    "station-replay",
		MQTTTopicPrefix: "stations",
	}
}

// Load reads an optional .env, an optional YAML file named by CONFIG_FILE,
// then environment overrides, and validates the result.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	cfg.AppEnv = getenvDefault("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.Port = getenvDefault("PORT", cfg.Port)

	cfg.NOAABaseURL = getenvDefault("NOAA_BASE_URL", cfg.NOAABaseURL)
	cfg.StationID = getenvDefault("STATION_ID", cfg.StationID)
	cfg.StationName = getenvDefault("STATION_NAME", cfg.StationName)
	cfg.BeginDate = getenvDefault("BEGIN_DATE", cfg.BeginDate)
	cfg.EndDate = getenvDefault("END_DATE", cfg.EndDate)
	cfg.Datum = getenvDefault("DATUM", cfg.Datum)
	cfg.TimeZone = strings.ToLower(getenvDefault("TIME_ZONE", cfg.TimeZone))
	cfg.Units = strings.ToLower(getenvDefault("UNITS", cfg.Units))

	if v := os.Getenv("PARAMETERS"); v != "" {
		var params []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				params = append(params, p)
			}
		}
		cfg.Parameters = params
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.FetchMaxRetries, err = getenvInt("FETCH_MAX_RETRIES", cfg.FetchMaxRetries); err != nil {
		return err
	}
	if cfg.FetchBackoff, err = getenvDuration("FETCH_BACKOFF", cfg.FetchBackoff); err != nil {
		return err
	}
	if cfg.FetchMaxBackoff, err = getenvDuration("FETCH_MAX_BACKOFF", cfg.FetchMaxBackoff); err != nil {
		return err
	}
	if cfg.PlaybackDelay, err = getenvDuration("PLAYBACK_DELAY", cfg.PlaybackDelay); err != nil {
		return err
	}
	cfg.PlaybackPacing = strings.ToLower(getenvDefault("PLAYBACK_PACING", cfg.PlaybackPacing))
	if cfg.PlaybackSpeedup, err = getenvFloat("PLAYBACK_SPEEDUP", cfg.PlaybackSpeedup); err != nil {
		return err
	}
	if cfg.PlaybackAutostart, err = getenvBool("PLAYBACK_AUTOSTART", cfg.PlaybackAutostart); err != nil {
		return err
	}
	if cfg.ReplayInterval, err = getenvDuration("REPLAY_INTERVAL", cfg.ReplayInterval); err != nil {
		return err
	}

	cfg.MQTTBroker = getenvDefault("MQTT_BROKER", cfg.MQTTBroker)
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", cfg.MQTTClientID)
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", cfg.MQTTTopicPrefix)
	return nil
}

// Validate checks field constraints and that the date window is well formed.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	begin, err := station.ParseDay(c.BeginDate)
	if err != nil {
		return fmt.Errorf("config: invalid BEGIN_DATE: %w", err)
	}
	end, err := station.ParseDay(c.EndDate)
	if err != nil {
		return fmt.Errorf("config: invalid END_DATE: %w", err)
	}
	if end.Before(begin) {
		return fmt.Errorf("config: END_DATE %s is before BEGIN_DATE %s", c.EndDate, c.BeginDate)
	}
	return nil
}

// Window returns the requested day range. Only valid after Validate.
func (c *AppConfig) Window() station.DateRange {
	begin, _ := station.ParseDay(c.BeginDate)
	end, _ := station.ParseDay(c.EndDate)
	return station.DateRange{Begin: begin, End: end}
}

// ParameterSpecs resolves the configured parameter names.
func (c *AppConfig) ParameterSpecs() []station.ParameterSpec {
	specs := make([]station.ParameterSpec, 0, len(c.Parameters))
	for _, name := range c.Parameters {
		if spec, ok := station.LookupParameter(station.Parameter(name)); ok {
			specs = append(specs, spec)
		}
	}
	return specs
}

// SlogLevel maps LogLevel to a slog level.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}
