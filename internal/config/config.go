package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"` // empty means in-memory storage
	JWTSecret      string        `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	HistoryLimit   int           `envconfig:"HISTORY_LIMIT" default:"20"`
	RoutingMargin  float64       `envconfig:"ROUTING_MARGIN" default:"20"`
	SaveInterval   time.Duration `envconfig:"SAVE_INTERVAL" default:"5s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit < 1 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}
	if cfg.RoutingMargin <= 0 {
		return nil, fmt.Errorf("ROUTING_MARGIN must be positive, got %v", cfg.RoutingMargin)
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into its entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginPatterns returns the allowed origins without their scheme, the
// form websocket.AcceptOptions expects.
func (c *Config) OriginPatterns() []string {
	origins := c.Origins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}

// Level maps LogLevel onto a slog level. Unknown values mean info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
