package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr              string
	TLSCert           string
	TLSKey            string
	MaxRooms          int
	MaxClientsPerRoom int
	MaxMessageSize    int64
	NotifyDelay       time.Duration
	SweepInterval     time.Duration
	RateLimitPerIP    float64
	MessageRate       float64
	CORSOrigins       []string
	MetricsAddr       string
	LogLevel          string
	LogFormat         string
}

func LoadConfig() *Config {
	return &Config{
		Addr:              envStr("RELAY_ADDR", ":5000"),
		TLSCert:           envStr("RELAY_TLS_CERT", ""),
		TLSKey:            envStr("RELAY_TLS_KEY", ""),
		MaxRooms:          envInt("RELAY_MAX_ROOMS", 0),
		MaxClientsPerRoom: envInt("RELAY_MAX_CLIENTS_PER_ROOM", 0),
		MaxMessageSize:    int64(envInt("RELAY_MAX_MESSAGE_SIZE", 1048576)),
		NotifyDelay:       envDuration("RELAY_NOTIFY_DELAY", 50*time.Millisecond),
		SweepInterval:     envDuration("RELAY_SWEEP_INTERVAL", 60*time.Second),
		RateLimitPerIP:    float64(envInt("RELAY_RATE_LIMIT_PER_IP", 20)),
		MessageRate:       float64(envInt("RELAY_MESSAGE_RATE", 50)),
		CORSOrigins:       envList("RELAY_CORS_ORIGINS", "http://localhost:5173"),
		MetricsAddr:       envStr("RELAY_METRICS_ADDR", ""),
		LogLevel:          envStr("RELAY_LOG_LEVEL", "info"),
		LogFormat:         envStr("RELAY_LOG_FORMAT", "text"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go duration syntax ("50ms", "1m").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(envStr(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
