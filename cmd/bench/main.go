// README: Operational check runner; probes the API, Postgres and Redis, audits seat and payout invariants, and load-tests booking.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"vanbora/internal/config"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, warn, skipped := 0, 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusWarn:
			warn++
		case StatusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d WARN=%d SKIP=%d\n", pass, fail, warn, skipped)

	if fail > 0 || (cfg.Strict && warn > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL   string
	DSN       string
	RedisAddr string
	// TripID and Tokens drive the concurrent booking probe; one token per passenger.
	TripID      string
	Tokens      []string
	StaleAfter  time.Duration
	Strict      bool
	Timeout     time.Duration
	Concurrency int
	Duration    time.Duration
}

func loadConfig() Config {
	// Shares VANBORA_* variables (and .env) with the API.
	app, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	var cfg Config
	var tokens string
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("VANBORA_BENCH_BASE_URL", "http://localhost"+app.HTTP.Addr), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", app.Store.DSN, "Postgres DSN")
	flag.StringVar(&cfg.RedisAddr, "redis", app.Redis.Addr, "Redis address (empty skips the Redis probe)")
	flag.StringVar(&cfg.TripID, "trip", os.Getenv("VANBORA_BENCH_TRIP"), "trip id for the concurrent booking probe")
	flag.StringVar(&tokens, "tokens", os.Getenv("VANBORA_BENCH_TOKENS"), "comma-separated passenger bearer tokens")
	flag.DurationVar(&cfg.StaleAfter, "stale-after", 15*time.Minute, "age after which an unsettled payout is reported")
	flag.BoolVar(&cfg.Strict, "strict", false, "fail on warnings")
	flag.DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", 20, "concurrency for load tests")
	flag.DurationVar(&cfg.Duration, "duration", 10*time.Second, "duration for load tests")
	flag.Parse()

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	for _, t := range strings.Split(tokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.Tokens = append(cfg.Tokens, t)
		}
	}
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
