// Package config loads process configuration from environment variables, in
// the teacher's style: required settings fail fast via log.Fatalf at
// startup (spec §7 Configuration errors are fatal), optional settings fall
// back to documented defaults, and comma-separated lists are parsed into
// typed slices with per-element validation that skips (rather than
// rejects) malformed entries.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"marketcore/internal/model"
)

// Config holds all process configuration loaded from environment variables
// (spec §6 "Environment variables").
type Config struct {
	Exchange model.Exchange
	Network  string // EXCHANGE_NETWORK: "main" | "test"

	Markets   []model.Market
	Intervals []model.Interval

	IndicatorPeriods []int

	CandleCapacity int // ring capacity R, default candlestore.DefaultCapacity

	SoftResetThreshold time.Duration
	HardResetThreshold time.Duration
	RestartThreshold   time.Duration

	HTTPAddr    string
	MetricsAddr string

	RedisAddr     string
	RedisPassword string

	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults. EXCHANGE and MARKETS are required; everything else falls back.
func Load() *Config {
	exchange, err := model.ParseExchange(mustEnv("EXCHANGE"))
	if err != nil {
		log.Fatalf("[config] %v", err)
	}

	cfg := &Config{
		Exchange: exchange,
		Network:  getEnv("EXCHANGE_NETWORK", "main"),

		Markets:   parseMarkets(mustEnv("MARKETS")),
		Intervals: parseIntervals(getEnv("INTERVALS", "1m")),

		IndicatorPeriods: parseInts(getEnv("INDICATORS_PERIODS", "14")),

		CandleCapacity: getEnvInt("CANDLE_CAPACITY", 200),

		SoftResetThreshold: getEnvSeconds("RESET_TIME_THRESHOLD", 20*time.Second),
		HardResetThreshold: getEnvSeconds("HARD_RESET_TIME_THRESHOLD", 30*time.Second),
		RestartThreshold:   getEnvSeconds("RESTART_TIME_THRESHOLD", 10*time.Second),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if len(cfg.Markets) == 0 {
		log.Fatalf("[config] MARKETS must name at least one market")
	}
	return cfg
}

// parseMarkets splits a comma-separated MARKETS value into canonical market
// tags. Unlike exchange/interval, any non-empty token is accepted — the
// market enum is open-ended per spec §3.
func parseMarkets(raw string) []model.Market {
	var out []model.Market
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, model.Market(strings.ToUpper(p)))
	}
	return out
}

// parseIntervals parses INTERVALS into the closed set from spec §3, logging
// and skipping malformed entries rather than failing the whole process
// (mirrors the teacher's Config.ParseTFs).
func parseIntervals(raw string) []model.Interval {
	var out []model.Interval
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		iv, err := model.ParseInterval(p)
		if err != nil {
			log.Printf("[config] skipping invalid interval: %q", p)
			continue
		}
		out = append(out, iv)
	}
	if len(out) == 0 {
		out = []model.Interval{model.Interval1m}
	}
	return out
}

// parseInts parses a comma-separated list of periods, skipping malformed or
// non-positive entries.
func parseInts(raw string) []int {
	var out []int
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid period: %q", p)
			continue
		}
		out = append(out, n)
	}
	return out
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

// getEnvSeconds reads an integer number of seconds from the environment,
// matching the "_TIME_THRESHOLD" env var names in spec §6.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid duration for %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return time.Duration(n) * time.Second
}
