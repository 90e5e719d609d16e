package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"punchcard/internal/api"
	"punchcard/internal/config"
	"punchcard/internal/events"
	"punchcard/internal/history"
	"punchcard/internal/metrics"
	"punchcard/internal/mirror"
	"punchcard/internal/report"
	"punchcard/internal/store"
	"punchcard/internal/timeclock"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PUNCHCARD_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Redis.Address == "" {
		logger.Fatal().Msg("set redis.address in config")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	records := store.NewRedisStore(rdb, &logger)

	var (
		cache      *mirror.SQLiteCache
		mirrorSync *mirror.Sync
	)
	if cfg.Mirror.Enabled {
		cache, err = mirror.NewSQLiteCache(cfg.Mirror.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("open mirror cache error")
		}
		defer cache.Close()
		mirrorSync = mirror.NewSync(cache, &logger)
	}

	bus := events.NewBus()
	for _, eventType := range []string{
		events.TypeClockIn, events.TypeClockOut,
		events.TypeLunchIn, events.TypeLunchOut, events.TypeWeeklyReset,
	} {
		bus.Subscribe(eventType, func(e events.Event) {
			logger.Info().Str("event", e.Type).Str("user", e.UserID).Time("at", e.At).Msg("shift event")
		})
	}

	hist := history.New(records, &logger)
	svc := timeclock.New(records, hist, mirrorSync, bus, &logger)
	reports := report.New(records, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, records, cache, &logger)

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	apiServer := api.NewServer(svc, reports, &logger, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiServer.Handler(),
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("punchcard started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

func startHealthServer(ctx context.Context, port int, records *store.RedisStore, cache *mirror.SQLiteCache, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := records.Ping(ctxPing); err != nil {
			http.Error(w, "record store not ready", http.StatusServiceUnavailable)
			return
		}
		if cache != nil {
			if err := cache.Ping(ctxPing); err != nil {
				http.Error(w, "mirror not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
