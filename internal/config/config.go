package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"leadscout/internal/fetch"
)

const (
	MinProbeDelay = 300 * time.Millisecond
	MaxProbeDelay = 500 * time.Millisecond
)

type Config struct {
	Env              string
	ListenAddr       string
	DatabaseURL      string
	DiscoveryWorkers int

	IndicatorsFile  string
	WatchIndicators bool

	ProbeDelay    time.Duration
	ProbeTimeout  time.Duration
	FetchTimeout  time.Duration
	FetchMaxBytes int64
	CheckLinks    bool
	CheckKeywords bool
	UserAgent     string

	LogLevel  string
	LogFormat string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after loading .env when present. The returned
// error is a warning; cfg is always usable.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:              getenv("APP_ENV", "development"),
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DiscoveryWorkers: getenvInt("DISCOVERY_WORKERS", 0),
		IndicatorsFile:   getenv("INDICATORS_FILE", "indicators.yaml"),
		WatchIndicators:  getenvBool("WATCH_INDICATORS", false),
		ProbeDelay:       getenvDuration("PROBE_DELAY", 400*time.Millisecond),
		ProbeTimeout:     getenvDuration("PROBE_TIMEOUT", 5*time.Second),
		FetchTimeout:     getenvDuration("FETCH_TIMEOUT", 10*time.Second),
		FetchMaxBytes:    int64(getenvInt("FETCH_MAX_BYTES", 2<<20)),
		CheckLinks:       getenvBool("CHECK_LINKS", true),
		CheckKeywords:    getenvBool("CHECK_KEYWORDS", false),
		UserAgent:        getenv("USER_AGENT", fetch.DefaultConfig().UserAgent),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "json"),
	}

	var warnings []error
	if cfg.ProbeDelay < MinProbeDelay || cfg.ProbeDelay > MaxProbeDelay {
		clamped := min(max(cfg.ProbeDelay, MinProbeDelay), MaxProbeDelay)
		warnings = append(warnings, fmt.Errorf("PROBE_DELAY %s outside %s-%s, using %s", cfg.ProbeDelay, MinProbeDelay, MaxProbeDelay, clamped))
		cfg.ProbeDelay = clamped
	}
	if cfg.DatabaseURL == "" {
		// Not fatal: leads stay in memory.
		warnings = append(warnings, errors.New("DATABASE_URL not set"))
	}
	if err := cfg.Validate(); err != nil {
		warnings = append(warnings, err)
	}
	return cfg, errors.Join(warnings...)
}

// Validate reports combinations the server cannot honour.
func (c Config) Validate() error {
	if c.DiscoveryWorkers > 0 && c.DatabaseURL == "" {
		return fmt.Errorf("DISCOVERY_WORKERS=%d requires DATABASE_URL", c.DiscoveryWorkers)
	}
	if c.DiscoveryWorkers < 0 {
		return fmt.Errorf("DISCOVERY_WORKERS must not be negative")
	}
	return nil
}

// FetchConfig derives the page fetcher's HTTP settings.
func (c Config) FetchConfig() fetch.Config {
	fc := fetch.DefaultConfig()
	fc.Timeout = c.FetchTimeout
	fc.MaxBodyBytes = c.FetchMaxBytes
	fc.UserAgent = c.UserAgent
	return fc
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
