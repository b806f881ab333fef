// Command dispatch runs one reminder dispatch batch and exits. It is the
// container-job alternative to calling /cron/reminders over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-scheduler/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	"github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/internal/reminders"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("dispatch requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := mainconfig.NewRedisClient(cfg)
	defer redisClient.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	settings := clinic.NewStore(redisClient, mainconfig.ClinicDefaults(cfg))
	notifier := notify.NewReminderNotifier(mainconfig.NewEmailSender(cfg, awsCfg, logger), settings, logger)
	worker := reminders.NewWorker(reminders.NewStore(pool), notifier, nil, logger)

	if err := run(ctx, worker, time.Now(), cfg.ReminderBatchLimit, logger); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, runner reminders.Runner, now time.Time, limit int, logger *logging.Logger) error {
	processed, err := runner.RunDue(ctx, now, limit)
	if err != nil {
		logger.Error("reminder dispatch failed", "error", err)
		return err
	}
	logger.Info("reminder dispatch complete", "processed", processed, "limit", reminders.ClampLimit(limit))
	return nil
}
