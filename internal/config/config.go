package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr             string   `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL          string   `envconfig:"DATABASE_URL" required:"true"`
	CORSAllowedOrigins   []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// threshold | linear
	PointsPolicy string `envconfig:"POINTS_POLICY" default:"threshold"`
	// close | delete
	HabitRemovalPolicy string `envconfig:"HABIT_REMOVAL_POLICY" default:"close"`

	ResetTimezone      string        `envconfig:"RESET_TIMEZONE" default:"Asia/Seoul"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	// envconfig accepts a variable that is set but empty
	for key, v := range map[string]string{"DATABASE_URL": cfg.DatabaseURL, "JWT_SECRET": cfg.JWTSecret} {
		if strings.TrimSpace(v) == "" {
			return Config{}, fmt.Errorf("missing env: %s", key)
		}
	}

	origins := cfg.CORSAllowedOrigins[:0]
	for _, o := range cfg.CORSAllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSAllowedOrigins = origins

	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location is the time zone that decides when a day starts.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ResetTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid RESET_TIMEZONE %q: %w", c.ResetTimezone, err)
	}
	return loc, nil
}
