package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ratelimit-proxy/middleware/ratelimit"
	"ratelimit-proxy/middleware/ratelimit/domain"
	"ratelimit-proxy/middleware/ratelimit/infra"
	"ratelimit-proxy/proxy"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if _, err := url.Parse(cfg.upstreamURL); err != nil {
		log.Fatalf("invalid REMOTE_DESTINATION: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store domain.LimiterStore
	switch cfg.rateStrategy {
	case "sliding":
		s := infra.NewSlidingLogStore(cfg.ratePerSec)
		s.StartJanitor(ctx)
		store = s
	case "bucket":
		s := infra.NewBucketStore(cfg.ratePerSec, cfg.rateBurst)
		s.StartJanitor(ctx)
		store = s
	default:
		log.Fatalf("unknown RATE_STRATEGY %q (use \"sliding\" or \"bucket\")", cfg.rateStrategy)
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	h := http.Handler(proxy.NewForwarder(cfg.upstreamURL))
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			Stats:               statsStore,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}

	listenAddr := net.JoinHostPort(cfg.bindHost, strconv.Itoa(cfg.bindPort))

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("proxy listening on %s -> %s", listenAddr, cfg.upstreamURL)
	log.Printf("rate: enabled=%v strategy=%s limit=%.3f/s keyHeader=%q trustXFF=%v", cfg.rateEnabled, cfg.rateStrategy, cfg.ratePerSec, cfg.rateKeyHeader, cfg.trustXFF)
	log.Printf("rate-stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v", cfg.rateStatsEnabled, cfg.rateStatsRedisAddr, cfg.rateStatsBucket, cfg.rateStatsTTL, cfg.rateStatsTrackKeys)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	bindHost     string
	bindPort     int
	upstreamURL  string
	rateEnabled  bool
	rateStrategy string
	ratePerSec   float64
	rateBurst    int

	rateKeyHeader string
	trustXFF      bool
	retryAfter    time.Duration
	addHeaders    bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.bindHost = getenvDefault("BIND_HOST", "localhost")
	cfg.bindPort = getenvIntDefault("BIND_PORT", 8080)
	cfg.upstreamURL = getenvDefault("REMOTE_DESTINATION", "http://example.com")
	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateStrategy = strings.ToLower(getenvDefault("RATE_STRATEGY", "sliding"))
	cfg.ratePerSec = getenvFloatDefault("RATE_LIMIT_PER_SEC", 1.0)
	// IMPORTANTE: o "burst" só vale para a estratégia bucket, que permite
	// uma rajada inicial de requisições. Com limite muito baixo (ex: 0.02),
	// o padrão 20 pode dar a impressão de que o limiter não está funcionando,
	// porque as primeiras ~20 passam.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.rateBurst = burst
	} else {
		cfg.rateBurst = 20
		if getenvIsSet("RATE_LIMIT_PER_SEC") && cfg.ratePerSec > 0 && cfg.ratePerSec < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 0)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}

	if cfg.upstreamURL == "" {
		return config{}, errors.New("REMOTE_DESTINATION must not be empty")
	}
	if cfg.bindPort <= 0 || cfg.bindPort > 65535 {
		return config{}, errors.New("BIND_PORT must be in 1..65535")
	}
	if cfg.ratePerSec <= 0 {
		return config{}, errors.New("RATE_LIMIT_PER_SEC must be > 0")
	}
	if cfg.rateStrategy != "sliding" && cfg.rateStrategy != "bucket" {
		return config{}, errors.New("RATE_STRATEGY must be \"sliding\" or \"bucket\"")
	}
	if cfg.rateBurst <= 0 {
		return config{}, errors.New("RATE_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
