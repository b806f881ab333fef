package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-scheduler/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduler/internal/api/router"
	"github.com/wolfman30/clinic-scheduler/internal/bookings"
	"github.com/wolfman30/clinic-scheduler/internal/catalog"
	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-scheduler/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduler/internal/maintenance"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/observability/tracing"
	"github.com/wolfman30/clinic-scheduler/internal/reminders"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting clinic scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic_id", cfg.ClinicID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "clinic-api",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSamplingRatio,
	})
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("clinic API requires DATABASE_URL")
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open admin database handle", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	redisClient := mainconfig.NewRedisClient(cfg)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, settings reads will fail until it recovers", "error", err)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, bookingMetrics, reminderMetrics := setupMetrics()

	settingsStore := clinic.NewStore(redisClient, mainconfig.ClinicDefaults(cfg))
	catalogStore := catalog.NewStore(pool)
	bookingRepo := bookings.NewRepository(pool)
	taskStore := reminders.NewStore(pool)

	bookingService := bookings.NewService(bookingRepo, catalogStore, settingsStore, bookingMetrics, cfg.ClinicID, logger)
	notifier := notify.NewReminderNotifier(mainconfig.NewEmailSender(cfg, awsCfg, logger), settingsStore, logger)
	worker := reminders.NewWorker(taskStore, notifier, reminderMetrics, logger)

	archive := maintenance.NewArchive(mainconfig.NewS3Client(awsCfg, cfg), cfg.BackupBucket, cfg.BackupPrefix, logger)
	backupRunner := maintenance.NewRunner(settingsStore, bookingRepo, taskStore, archive, logger)

	outboxHandler, closeOutbox := newOutboxHandler(cfg, awsCfg, logger)
	defer func() {
		if err := closeOutbox(); err != nil {
			logger.Warn("failed to close outbox transport", "error", err)
		}
	}()
	deliverer := events.NewDeliverer(events.NewOutboxStore(pool), outboxHandler, logger).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	limiter := httpmiddleware.NewRateLimiter(cfg.BookingRateLimitRPS, cfg.BookingRateLimitBurst)
	go limiter.Run(ctx)

	loc, err := schedule.ParseUTCOffset(cfg.ClinicUTCOffset)
	if err != nil {
		logger.Warn("invalid CLINIC_UTC_OFFSET, dashboard falls back to UTC", "offset", cfg.ClinicUTCOffset, "error", err)
		loc = time.UTC
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Bookings:           bookings.NewHandler(bookingService, logger),
		Catalog:            catalog.NewHandler(catalogStore, logger),
		Reminders:          reminders.NewHandler(worker, taskStore, cfg.ReminderBatchLimit, logger),
		ClinicSettings:     clinic.NewHandler(settingsStore, logger),
		ClinicStats:        clinic.NewStatsHandler(clinic.NewStatsRepository(pool, cfg.ClinicID), logger),
		AdminDashboard:     handlers.NewAdminDashboardHandler(sqlDB, cfg.ClinicName, loc, logger),
		Backup:             maintenance.NewHandler(backupRunner, logger),
		BookingLimiter:     limiter,
		MetricsHandler:     metricsHandler,
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CronSecret:         cfg.CronSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ServiceName:        "clinic-api",
	})
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is empty; /cron endpoints will reject every call")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGraceDuration)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the booking and reminder collectors on a dedicated
// registry together with the Go runtime collectors.
func setupMetrics() (http.Handler, *metrics.BookingMetrics, *metrics.ReminderMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(reg)
	reminderMetrics := metrics.NewReminderMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), bookingMetrics, reminderMetrics
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// newOutboxHandler returns the delivery transport for EVENTS_TRANSPORT and a
// close func for it.
func newOutboxHandler(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (events.DeliveryHandler, func() error) {
	noop := func() error { return nil }
	switch cfg.EventsTransport {
	case "sqs":
		if cfg.EventsQueueURL != "" {
			return events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.EventsQueueURL), noop
		}
		logger.Warn("EVENTS_QUEUE_URL missing, outbox events will only be logged")
	case "kafka":
		if len(cfg.KafkaBrokers) > 0 {
			p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
			return p, p.Close
		}
		logger.Warn("KAFKA_BROKERS missing, outbox events will only be logged")
	}
	return events.LogHandler{Logger: logger}, noop
}
