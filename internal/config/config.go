package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL      string
	ListenAddr string
	APIKeys    map[string]string // apiKey -> sensorID

	// Scorer adapter. Empty ScorerURL selects the built-in heuristic scorer.
	ScorerURL     string
	ScorerTimeout time.Duration

	// Enrichment adapter.
	GeoIPURL       string
	GeoIPTimeout   time.Duration
	GeoIPCacheSize int

	// Alert notification. Empty NATSURL disables the notifier.
	NATSURL        string
	AlertThreshold float64
}

// Load reads required values from environment variables.
// API_KEYS format: "sensor1:key1,sensor2:key2"
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:     ":8080",
		ScorerTimeout:  5 * time.Second,
		GeoIPTimeout:   5 * time.Second,
		GeoIPCacheSize: 4096,
		AlertThreshold: 0.85,
	}

	cfg.DBURL = strings.TrimSpace(os.Getenv("DB_URL"))
	if cfg.DBURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	keys, err := parseAPIKeys(os.Getenv("API_KEYS"))
	if err != nil {
		return Config{}, err
	}
	cfg.APIKeys = keys

	cfg.ScorerURL = strings.TrimSpace(os.Getenv("SCORER_URL"))
	if cfg.ScorerTimeout, err = durationEnv("SCORER_TIMEOUT", cfg.ScorerTimeout); err != nil {
		return Config{}, err
	}

	cfg.GeoIPURL = strings.TrimSpace(os.Getenv("GEOIP_URL"))
	if cfg.GeoIPTimeout, err = durationEnv("GEOIP_TIMEOUT", cfg.GeoIPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.GeoIPCacheSize, err = intEnv("GEOIP_CACHE_SIZE", cfg.GeoIPCacheSize); err != nil {
		return Config{}, err
	}
	if cfg.GeoIPCacheSize <= 0 {
		return Config{}, errors.New("GEOIP_CACHE_SIZE must be positive")
	}

	cfg.NATSURL = strings.TrimSpace(os.Getenv("NATS_URL"))
	if cfg.AlertThreshold, err = floatEnv("ALERT_THRESHOLD", cfg.AlertThreshold); err != nil {
		return Config{}, err
	}
	if cfg.AlertThreshold < 0 || cfg.AlertThreshold > 1 {
		return Config{}, errors.New("ALERT_THRESHOLD must be in [0,1]")
	}

	return cfg, nil
}

func parseAPIKeys(raw string) (map[string]string, error) {
	apiKeys := map[string]string{}

	raw = strings.TrimSpace(raw)
	if raw != "" {
		pairs := strings.Split(raw, ",")
		for _, p := range pairs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				return nil, errors.New(`API_KEYS must be "sensor:key,sensor:key"`)
			}
			sensor := strings.TrimSpace(parts[0])
			key := strings.TrimSpace(parts[1])
			if sensor == "" || key == "" {
				return nil, errors.New(`API_KEYS must be "sensor:key,sensor:key"`)
			}
			apiKeys[key] = sensor
		}
	}

	return apiKeys, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", name)
	}
	return d, nil
}

func intEnv(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func floatEnv(name string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return f, nil
}
