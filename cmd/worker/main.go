package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/alerts"
	"github.com/benvon/usage-gov/internal/config"
	"github.com/benvon/usage-gov/internal/database"
	"github.com/benvon/usage-gov/internal/logger"
	"github.com/benvon/usage-gov/internal/queue"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.WorkerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("evaluate_schedule", cfg.EvaluateSchedule),
		zap.Bool("rabbitmq_configured", cfg.RabbitMQURL != ""),
	)

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	zapLogger.Info("connected_to_database")

	// Alert sink: RabbitMQ when configured, structured log otherwise
	var notifier alerts.Notifier
	if cfg.RabbitMQURL != "" {
		publisher, err := queue.NewAlertPublisher(cfg.RabbitMQURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		notifier = publisher
		zapLogger.Info("connected_to_rabbitmq")
	} else {
		notifier = alerts.NewLogNotifier(zapLogger)
		zapLogger.Info("rabbitmq_not_configured_alerts_go_to_log")
	}

	evaluator := alerts.NewEvaluator(
		database.NewAlertConfigRepository(db),
		database.NewUsageRepository(db),
		notifier,
		zapLogger,
		alerts.WithCriticalOverageRatio(cfg.CriticalOverage),
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Schedule the evaluation loop. Overlapping ticks are safe: the
	// evaluator's conditional trigger stamp guarantees at most one alert
	// per breach even when two runs race.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.EvaluateSchedule, func() {
		result, err := evaluator.EvaluateThresholds(ctx)
		if err != nil {
			zapLogger.Error("threshold_evaluation_failed", zap.Error(err))
			return
		}
		if result.Summary.TotalAlerts > 0 {
			zapLogger.Info("evaluation_tick_produced_alerts",
				zap.Int("alerts", result.Summary.TotalAlerts),
				zap.Int("critical", result.Summary.CriticalAlerts),
			)
		}
	})
	if err != nil {
		zapLogger.Fatal("invalid_evaluate_schedule",
			zap.String("schedule", cfg.EvaluateSchedule),
			zap.Error(err),
		)
	}

	scheduler.Start()
	zapLogger.Info("worker_started",
		zap.String("schedule", cfg.EvaluateSchedule),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	zapLogger.Info("shutdown_signal_received_stopping_worker")

	// Stop scheduling new runs, then wait for an in-flight run to finish
	stopCtx := scheduler.Stop()
	cancel()
	<-stopCtx.Done()

	zapLogger.Info("worker_stopped")
}
