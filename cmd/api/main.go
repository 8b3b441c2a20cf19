package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/arlingtonsteamers/booking-agent/internal/api/router"
	"github.com/arlingtonsteamers/booking-agent/internal/appointments"
	"github.com/arlingtonsteamers/booking-agent/internal/booking"
	appconfig "github.com/arlingtonsteamers/booking-agent/internal/config"
	"github.com/arlingtonsteamers/booking-agent/internal/dialogue"
	"github.com/arlingtonsteamers/booking-agent/internal/http/handlers"
	"github.com/arlingtonsteamers/booking-agent/internal/messaging"
	"github.com/arlingtonsteamers/booking-agent/internal/notify"
	"github.com/arlingtonsteamers/booking-agent/internal/observability/metrics"
	"github.com/arlingtonsteamers/booking-agent/internal/schedule"
	"github.com/arlingtonsteamers/booking-agent/internal/session"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting booking-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}

	// Redis
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}

	// Domain wiring
	botMetrics := metrics.NewBotMetrics(nil)
	flow := dialogue.DefaultFlow()
	sessions := session.NewStore(redisClient, flow.InitialStep(), cfg.SessionTTL, logger).
		WithSweepObserver(botMetrics.ObserveSweptSessions)
	go sessions.RunSweeper(ctx, cfg.SweepInterval)

	avail := schedule.NewEngine(cfg.OpenHour, cfg.CloseHour, cfg.ExcludedDays,
		schedule.WithWindowDays(cfg.WindowDays))
	repo := appointments.NewRepository(pool)
	booker := booking.NewEngine(avail, repo, cfg.Workers, logger).WithMetrics(botMetrics)

	sender := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	emailSender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)
	var email notify.EmailSender
	if emailSender != nil {
		email = emailSender
	}
	notifier := notify.NewService(sender, email, cfg.AdminWhatsAppNumber, cfg.AdminEmail, logger)

	controller := dialogue.NewController(flow, sessions, avail, booker, repo, notifier, logger)

	webhookHandler := messaging.NewHandler(cfg.TwilioAuthToken, controller, botMetrics, cfg.Env, logger)

	// HTTP surface
	routerCfg := &router.Config{
		Logger:             logger,
		WebhookHandler:     webhookHandler,
		AuthHandler:        handlers.NewAuthHandler(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminJWTSecret, logger),
		AdminAppointments:  handlers.NewAdminAppointmentsHandler(repo, logger),
		AdminSessions:      handlers.NewAdminSessionsHandler(sessions, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
