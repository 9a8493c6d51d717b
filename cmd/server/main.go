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

	"slotwise/internal/allocator"
	"slotwise/internal/api"
	"slotwise/internal/config"
	"slotwise/internal/export"
	"slotwise/internal/guard"
	"slotwise/internal/metrics"
	"slotwise/internal/model"
	"slotwise/internal/occupancy"
	"slotwise/internal/otp"
	"slotwise/internal/reservation"
	"slotwise/internal/schedule"
	"slotwise/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SLOTWISE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid business timezone")
	}

	var dayEnd model.TimeOfDay
	if cfg.Business.DayEnd != "" {
		dayEnd, err = model.ParseTimeOfDay(cfg.Business.DayEnd)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid business.day_end")
		}
	}

	db, err := store.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	} else {
		logger.Fatal().Msg("set redis.address in config; OTP storage requires Redis")
	}

	otpStore := otp.NewRedisStore(rdb, otp.NewLogSender(&logger), otp.StoreConfig{
		TTL:           cfg.OTPTTL(),
		MaxAttempts:   cfg.OTP.MaxAttempts,
		IssueInterval: cfg.OTPIssueInterval(),
	})

	resolver := schedule.NewResolver(db, db, db)
	index := occupancy.NewIndex(db)
	alloc := allocator.New(resolver, index, allocator.Config{
		SlotDuration: cfg.Business.SlotDurationMinutes,
		Location:     loc,
		DayEnd:       dayEnd,
	})
	workflow := reservation.New(otpStore, alloc, db, db, reservation.Rules{
		SlotDuration: cfg.Business.SlotDurationMinutes,
		Location:     loc,
		MaxAdvance:   cfg.MaxAdvance(),
		MinNotice:    cfg.MinNotice(),
	}, &logger)
	g := guard.New(resolver, db, db, guard.Config{
		SlotDuration:  cfg.Business.SlotDurationMinutes,
		LookaheadDays: cfg.GuardLookahead(),
		Location:      loc,
	})
	reporter := export.NewReporter(db, db, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(resolver, alloc, workflow, g, otpStore, db, db, reporter, &logger)

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	logger.Info().Int("port", cfg.Server.Port).Msg("availability engine started")
	if err := server.Serve(ctx, cfg.Server.Port); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

func startHealthServer(ctx context.Context, port int, db *store.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(ctxPing).Err(); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
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
