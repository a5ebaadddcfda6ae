package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/gov-appointments/internal/api"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/checkin"
	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/internal/conversation"
	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/observability/metrics"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
	"github.com/hackgods/gov-appointments/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "dev").Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("timezone", cfg.Timezone).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err == nil {
		err = db.EnsureSchema(pgCtx, pgPool)
	}
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres setup error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	m := metrics.New(prometheus.DefaultRegisterer)

	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		appointment.ServiceConfig{
			Location: cfg.Location,
			Logger:   logger.With().Str("component", "appointments").Logger(),
			Metrics:  m,
		},
	)

	validator := checkin.NewValidator(appointments, checkin.ValidatorConfig{
		Location: cfg.Location,
		Secret:   cfg.QRSecret,
		Logger:   logger.With().Str("component", "checkin").Logger(),
		Metrics:  m,
	})
	issuer := checkin.NewIssuer(appointments, cfg.QRSecret, cfg.QRImageBaseURL, nil)

	conversations := conversation.NewService(
		conversation.NewRedisStore(rdb, nil),
		logger.With().Str("component", "conversation").Logger(),
		m,
		nil,
	)

	health := api.NewHealthHandler(
		func(ctx context.Context) error { return pgPool.Ping(ctx) },
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		cfg.Env,
		version,
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments:   appointments,
		Validator:      validator,
		Issuer:         issuer,
		Conversations:  conversations,
		Health:         health,
		JWTSecret:      cfg.JWTSecret,
		CheckInLimiter: redisclient.NewRedisRateLimiter(rdb, "checkin", cfg.RateLimit, cfg.RateLimitWindow),
		MessageLimiter: redisclient.NewRedisRateLimiter(rdb, "messages", cfg.RateLimit, cfg.RateLimitWindow),
		RequestTimeout: cfg.RequestTimeout,
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
