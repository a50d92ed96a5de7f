package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	cfg "github.com/sand/chain-compliance/backend/config"
	"github.com/sand/chain-compliance/backend/internal/aml"
	amlclients "github.com/sand/chain-compliance/backend/internal/aml/clients"
	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	amlrepository "github.com/sand/chain-compliance/backend/internal/aml/repository"
	amlservices "github.com/sand/chain-compliance/backend/internal/aml/services"
	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/events"
	"github.com/sand/chain-compliance/backend/internal/handlers"
	"github.com/sand/chain-compliance/backend/internal/lock"
	"github.com/sand/chain-compliance/backend/internal/metrics"
	"github.com/sand/chain-compliance/backend/internal/shared"
	"github.com/sand/chain-compliance/backend/internal/usecases"
	"github.com/sand/chain-compliance/backend/internal/usecases/repository"
	"github.com/sand/chain-compliance/backend/internal/workers"
	"github.com/sand/chain-compliance/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 60
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// .env is optional, real environment wins
	_ = godotenv.Load()

	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Warn("Starting application with configuration",
		"debug", config.App.Debug,
		"environment", config.App.Environment,
		"server_port", config.HTTP.Port,
		"scheduler_enabled", config.Scheduler.Enabled,
		"redis_leases", config.Redis.URL != "",
		"kafka_brokers", len(config.Kafka.Brokers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Database
	pg, err := database.New(config.DB.DatabaseURL,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.ReadCommitted),
	)
	if err != nil {
		logger.Error("postgres connection failed", slog.String("error", err.Error()))
		return
	}
	defer pg.Close()

	migrationsPath := database.FindMigrationsDir()
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		log.Fatal(err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	// Create repositories
	addressesRepository := repository.NewMonitoredAddressesRepository(logger, pg)
	transactionsRepository := repository.NewTransactionsRepository(logger, pg)
	organizationsRepository := repository.NewOrganizationsRepository(logger, pg)
	referenceRepository := amlrepository.NewReferenceRepository(logger, pg)

	// Risk engine
	engine := initRiskEngine(logger, config, referenceRepository, appMetrics)

	publisher := events.NewPublisher(logger, config.Kafka.Brokers, config.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	defaultAmountThreshold, err := decimal.NewFromString(config.Screening.DefaultTransactionThreshold)
	if err != nil {
		logger.Error("Invalid default transaction threshold", "error", err)
		log.Fatal(err)
	}

	screeningService := usecases.NewScreeningService(
		logger,
		usecases.ScreeningConfig{
			BatchSize:                   config.Screening.BatchSize,
			PageSize:                    config.Screening.PageSize,
			MaxPages:                    config.Screening.MaxPages,
			DefaultRiskScoreThreshold:   config.Screening.DefaultRiskScoreThreshold,
			DefaultTransactionThreshold: defaultAmountThreshold,
		},
		addressesRepository,
		transactionsRepository,
		organizationsRepository,
		engine.feed,
		referenceRepository,
		engine.attributions,
		engine.RiskEngine,
		publisher,
		appMetrics,
	)
	transactionService := usecases.NewTransactionService(logger, transactionsRepository, organizationsRepository)

	jurisdictionSource := amlclients.NewJurisdictionSource(logger, config.Feeds.JurisdictionSource)
	resyncService := usecases.NewResyncService(logger, jurisdictionSource, referenceRepository, engine.RiskEngine)

	// Distributed lock and scheduler
	locker := lock.New(logger, initLeaseStore(logger, config, pg),
		lock.WithRetryDelay(config.Scheduler.RetryDelay()),
		lock.WithMetrics(appMetrics),
	)

	scheduler := workers.NewScheduler(logger, locker, workers.SchedulerConfig{
		Enabled:           config.Scheduler.Enabled,
		ProductionEnabled: config.Scheduler.ProductionEnabled,
		Environment:       config.App.Environment,
	}, appMetrics)

	resyncJob := workers.NewReferenceResyncJob(workers.JobConfig{
		Schedule:     config.Jobs.Resync.Schedule,
		LockDuration: config.Jobs.Resync.LockDuration(),
		Enabled:      config.Jobs.Resync.Enabled && jurisdictionSource.IsEnabled(),
	}, resyncService)
	screeningJob := workers.NewTransactionScreeningJob(workers.JobConfig{
		Schedule:     config.Jobs.Screening.Schedule,
		LockDuration: config.Jobs.Screening.LockDuration(),
		Enabled:      config.Jobs.Screening.Enabled,
	}, screeningService)

	for _, job := range []workers.Job{resyncJob, screeningJob} {
		if err = scheduler.Register(job); err != nil {
			logger.Error("Failed to register job", "job", job.Name, "error", err)
			log.Fatal(err)
		}
	}

	scheduler.Start(ctx)
	defer scheduler.StopAll()

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, transactionService, engine.RiskEngine, scheduler, registry)

	router := mux.NewRouter()
	httpHandler.RegisterRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

type riskEngine struct {
	*aml.RiskEngine
	attributions ports.AttributionLookup
	feed         ports.TransactionFeed
}

func initRiskEngine(logger *slog.Logger, config *cfg.Config, reference *amlrepository.ReferenceRepository, m *metrics.Metrics) riskEngine {
	// Внешний API атрибуции используется, если заданы ключ и адрес,
	// иначе работаем по локальным справочникам
	var (
		attributions ports.AttributionLookup = reference
		directory    ports.EntityDirectory   = reference
	)
	attributionClient := amlclients.NewAttributionClient(logger, config.Feeds.AttributionAPIKey, config.Feeds.AttributionAPIURL)
	if attributionClient.IsEnabled() {
		attributions = attributionClient
		directory = attributionClient
	}

	var solanaFeed ports.TransactionFeed
	if config.Feeds.SolanaRPCURL != "" || shared.IsScreeningDebugMode() {
		solanaFeed = amlclients.NewSolanaFeed(logger, config.Feeds.SolanaRPCURL)
	}
	explorerURL := amlclients.EsploraAPIURL(config.Feeds.ExplorerAPIURL)
	feed := amlclients.NewFeedRouter(amlclients.NewEsploraFeed(logger, explorerURL), solanaFeed)

	cache := amlservices.NewRiskCache(logger, reference, config.Risk.CacheTTL(), m)

	engine, err := aml.NewRiskEngine(logger, aml.Config{
		Weights: amlentities.Weights{
			Jurisdiction: config.Risk.JurisdictionWeight,
			Entity:       config.Risk.EntityWeight,
			Transaction:  config.Risk.TransactionWeight,
		},
		RecentTransactions: config.Risk.RecentTransactions,
		MaxHops:            config.Risk.MaxHops,
		HopWeightDecay:     config.Risk.HopWeightDecay,
	}, cache, attributions, directory, feed)
	if err != nil {
		logger.Error("Failed to create risk engine", "error", err)
		log.Fatal(err)
	}

	logger.Info("Risk engine initialized",
		"attribution_api_enabled", attributionClient.IsEnabled(),
		"debug_mode", shared.IsScreeningDebugMode(),
		"explorer_url", explorerURL,
		"solana_feed_enabled", solanaFeed != nil)

	return riskEngine{RiskEngine: engine, attributions: attributions, feed: feed}
}

func initLeaseStore(logger *slog.Logger, config *cfg.Config, pg *database.Postgres) lock.LeaseStore {
	if config.Redis.URL == "" {
		logger.Info("Using Postgres lease store")
		return lock.NewPostgresStore(logger, pg)
	}

	redisOpts, err := redis.ParseURL(config.Redis.URL)
	if err != nil {
		logger.Error("Invalid redis url", "error", err)
		log.Fatal(err)
	}

	logger.Info("Using Redis lease store", "addr", redisOpts.Addr)
	return lock.NewRedisStore(redis.NewClient(redisOpts))
}
