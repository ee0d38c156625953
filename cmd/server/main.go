package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/alerts"
	"github.com/benvon/usage-gov/internal/config"
	"github.com/benvon/usage-gov/internal/database"
	"github.com/benvon/usage-gov/internal/handlers"
	"github.com/benvon/usage-gov/internal/logger"
	"github.com/benvon/usage-gov/internal/middleware"
	"github.com/benvon/usage-gov/internal/queue"
	"github.com/benvon/usage-gov/internal/ratelimit"
	"github.com/benvon/usage-gov/internal/telemetry"
	"github.com/benvon/usage-gov/internal/vault"
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
	debugMode := cfg.ServerDebugMode || *debugFlag

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

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("redis_configured", cfg.RedisURL != ""),
		zap.Bool("rabbitmq_configured", cfg.RabbitMQURL != ""),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "usage-gov-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
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

	// Pick the counter store. Redis gives quota enforcement global scope
	// across instances; without it the in-process fallback serves
	// decisions in degraded mode rather than refusing to start.
	var counterStore ratelimit.CounterStore
	if cfg.RedisURL != "" {
		redisStore, err := ratelimit.NewRedisCounterStore(cfg.RedisURL, cfg.RedisTimeout)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisStore.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		counterStore = redisStore
		zapLogger.Info("connected_to_redis")
	} else {
		counterStore = ratelimit.NewMemoryCounterStore()
		zapLogger.Warn("redis_not_configured_using_in_process_counter_store")
	}

	// Load rate limit policies
	policies, err := ratelimit.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_rate_limit_policies", zap.Error(err))
	}
	limiter := ratelimit.NewLimiter(counterStore, policies, zapLogger,
		ratelimit.WithMetrics(ratelimit.NewMetrics()),
	)
	zapLogger.Info("rate_limiter_initialized",
		zap.Int("policies", len(policies)),
		zap.Bool("degraded", limiter.Degraded()),
	)

	// Initialize the credential vault
	keyVault, err := vault.New(database.NewAPIKeyRepository(db), cfg.EncryptionSecret, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_vault", zap.Error(err))
	}

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

	// Initialize repositories and the evaluator
	alertConfigRepo := database.NewAlertConfigRepository(db)
	usageRepo := database.NewUsageRepository(db)
	evaluator := alerts.NewEvaluator(alertConfigRepo, usageRepo, notifier, zapLogger,
		alerts.WithCriticalOverageRatio(cfg.CriticalOverage),
	)

	// Initialize handlers
	keyHandler := handlers.NewKeyHandler(keyVault, zapLogger)
	alertHandler := handlers.NewAlertHandler(evaluator, zapLogger)
	usageHandler := handlers.NewUsageHandler(usageRepo, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, limiter)

	// Setup router
	r := mux.NewRouter()

	// Apply middleware (order matters - executed in reverse order of registration)
	zapLogger.Info("setting_up_middleware")

	// 0. OpenTelemetry tracing (if enabled)
	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("usage-gov-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	// 1. Security headers (should be set on all responses)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// 2. CORS
	r.Use(middleware.CORS(cfg.FrontendURL))
	// 3. Request size limits (protects against DoS)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	// 4. Content-Type validation for POST/PATCH/PUT requests
	r.Use(middleware.ContentType)
	// 5. Request timeout (30 seconds default)
	r.Use(middleware.Timeout(30 * time.Second))
	// 6. Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// 7. Audit logging (for security events)
	r.Use(middleware.Audit(zapLogger))
	// 8. Logging (innermost, executes last before handler)
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// Key routes get the stricter auth policy; credential operations are
	// rare and a natural brute-force target.
	keysRouter := apiRouter.PathPrefix("/keys").Subrouter()
	keysRouter.Use(middleware.RateLimit(limiter, "auth", zapLogger))
	keyHandler.RegisterRoutes(keysRouter)

	alertsRouter := apiRouter.PathPrefix("/alerts").Subrouter()
	alertsRouter.Use(middleware.RateLimit(limiter, "api", zapLogger))
	alertHandler.RegisterRoutes(alertsRouter)

	usageRouter := apiRouter.PathPrefix("/usage").Subrouter()
	usageRouter.Use(middleware.RateLimit(limiter, "api", zapLogger))
	usageHandler.RegisterRoutes(usageRouter)

	// Catch-all OPTIONS handler for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info (sanitized for security)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
