package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendor-payout-ledger/config"
	httpHandler "vendor-payout-ledger/internal/adapter/http/handler"
	"vendor-payout-ledger/internal/adapter/storage/memory"
	pgStorage "vendor-payout-ledger/internal/adapter/storage/postgres"
	redisStorage "vendor-payout-ledger/internal/adapter/storage/redis"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/internal/service"
	"vendor-payout-ledger/pkg/logger"
	"vendor-payout-ledger/pkg/metrics"
	"vendor-payout-ledger/pkg/migrate"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// repositories is the storage backend selected by configuration.
type repositories struct {
	transactor     ports.DBTransactor
	wallets        ports.WalletRepository
	ledger         ports.LedgerRepository
	payouts        ports.PayoutRepository
	audit          ports.AuditRepository
	configurations ports.ConfigurationRepository
	paymentMethods ports.PaymentMethodRepository
	kyc            ports.VendorKYCRepository
	health         ports.HealthChecker
	close          func()
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Database.Driver).
		Msg("Starting Vendor Payout Ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required")
	}

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	healthCheckers := []ports.HealthChecker{repos.health}

	// Optional Redis: idempotency fast path, rate limits and the expiry job lock
	var (
		rdb            *goredis.Client
		idempCache     ports.IdempotencyCache
		rateLimitStore ports.RateLimitStore
		expiryLock     ports.JobLock
	)
	if cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		expiryLock = redisStorage.NewJobLock(rdb, service.ExpiryJobName, cfg.Payout.ExpirySweepInterval)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: rate limiting off, idempotency served from storage only")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(reg)
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	// Notifications
	var notifier ports.NotificationDispatcher
	var webhook *service.WebhookNotifier
	if cfg.Notification.WebhookURL != "" {
		webhook = service.NewWebhookNotifier(
			cfg.Notification.WebhookURL,
			cfg.Notification.SigningSecret,
			&http.Client{Timeout: cfg.Notification.Timeout},
			ledgerMetrics,
			log,
		)
		notifier = webhook
	} else {
		notifier = service.NewLogNotifier(ledgerMetrics, log)
	}

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	ledgerSvc := service.NewLedgerService(repos.transactor, repos.wallets, repos.ledger, ledgerMetrics, log)
	configSvc := service.NewConfigurationService(repos.transactor, repos.configurations, log)
	auditSvc := service.NewAuditService(repos.audit, log)
	vendorSvc := service.NewVendorDirectoryService(repos.paymentMethods, repos.kyc, log)
	payoutSvc := service.NewPayoutService(service.PayoutServiceDeps{
		Transactor:     repos.transactor,
		WalletRepo:     repos.wallets,
		PayoutRepo:     repos.payouts,
		PaymentMethods: repos.paymentMethods,
		KYC:            repos.kyc,
		Configurations: configSvc,
		Ledger:         ledgerSvc,
		Audit:          auditSvc,
		Notifier:       notifier,
		IdempCache:     idempCache,
		IdempTTL:       cfg.Payout.IdempotencyTTL,
		Metrics:        ledgerMetrics,
		Log:            log,
	})

	// Pending expiry sweeper
	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	if cfg.Payout.PendingExpiry > 0 {
		sweeper, err := service.NewExpirySweeper(service.ExpirySweeperParams{
			Payouts:   payoutSvc,
			Lock:      expiryLock,
			Metrics:   ledgerMetrics,
			Log:       log,
			OlderThan: cfg.Payout.PendingExpiry,
			Interval:  cfg.Payout.ExpirySweepInterval,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize expiry sweeper")
		}
		go func() {
			_ = sweeper.Run(jobCtx)
		}()
		log.Info().Dur("older_than", cfg.Payout.PendingExpiry).Msg("Pending payout expiry enabled")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:         ledgerSvc,
		Payouts:        payoutSvc,
		Configs:        configSvc,
		Vendors:        vendorSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		MetricsHandler: metricsHandler,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")
	stopJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if webhook != nil {
		if err := webhook.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Webhook deliveries still in flight at shutdown")
		}
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Database.IsMemory() {
		log.Warn().Msg("Using in-memory storage: data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			transactor:     store,
			wallets:        memory.NewWalletRepo(store),
			ledger:         memory.NewLedgerRepo(store),
			payouts:        memory.NewPayoutRepo(store),
			audit:          memory.NewAuditRepo(store),
			configurations: memory.NewConfigurationRepo(store),
			paymentMethods: memory.NewPaymentMethodRepo(store),
			kyc:            memory.NewVendorKYCRepo(store),
			health:         store,
			close:          func() {},
		}, nil
	}

	if cfg.Database.MigrateOnStart {
		if err := runMigrations(ctx, cfg.Database.DSN()); err != nil {
			return nil, err
		}
		log.Info().Msg("Database migrations applied")
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	return &repositories{
		transactor:     pgStorage.NewTransactor(pool),
		wallets:        pgStorage.NewWalletRepo(pool),
		ledger:         pgStorage.NewLedgerRepo(pool),
		payouts:        pgStorage.NewPayoutRepo(pool),
		audit:          pgStorage.NewAuditRepo(pool),
		configurations: pgStorage.NewConfigurationRepo(pool),
		paymentMethods: pgStorage.NewPaymentMethodRepo(pool),
		kyc:            pgStorage.NewVendorKYCRepo(pool),
		health:         pgStorage.NewHealthCheck(pool),
		close:          pool.Close,
	}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()
	return migrate.Run(ctx, db, "up")
}
