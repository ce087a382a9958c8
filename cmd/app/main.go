// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"typing-premium-payments/internal/config"
	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/infra/adapters/directory"
	tele "typing-premium-payments/internal/infra/adapters/telegram"
	"typing-premium-payments/internal/infra/api"
	pg "typing-premium-payments/internal/infra/db/postgres"
	"typing-premium-payments/internal/infra/i18n"
	"typing-premium-payments/internal/infra/logging"
	"typing-premium-payments/internal/infra/metrics"
	"typing-premium-payments/internal/infra/payment"
	red "typing-premium-payments/internal/infra/redis"
	"typing-premium-payments/internal/infra/sched"
	"typing-premium-payments/internal/infra/worker"
	"typing-premium-payments/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Config & logging ----
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	orderRepo := pg.NewOrderRepo(pool)
	txnRepo := pg.NewBankTransactionRepo(pool)
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewPostgresUserRepo(pool), redisClient, cfg.Redis.TTL, logger)
	notifRepo := pg.NewNotificationRepo(pool)

	// ---- Domain settings ----
	catalog, err := cfg.PlanCatalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("plans")
	}
	tolerance, err := cfg.FuzzyTolerance()
	if err != nil {
		logger.Fatal().Err(err).Msg("reconciliation.fuzzy_tolerance")
	}
	validator, err := usecase.NewTxnRefValidator(cfg.Payment.ClaimRefFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment.claim_ref_format")
	}
	codec, err := payment.NewUPICodec(cfg.Payment.Currency, "Typing Premium", cfg.Payment.QRSize, cfg.Payment.QRLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment codec")
	}

	// ---- Notifications ----
	tasks := worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	tasks.Start(ctx)
	defer tasks.Stop()

	notifiers := []adapter.Notifier{tele.NewNoopNotifier(logger)}
	if cfg.Notify.TelegramToken != "" {
		tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Notify.Language)
		if err != nil {
			logger.Fatal().Err(err).Msg("notify.language")
		}
		tg, err := tele.NewNotifier(cfg.Notify.TelegramToken, cfg.Notify.AdminChatIDs, tr, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		notifiers = []adapter.Notifier{tg}
	}
	notifyUC := usecase.NewNotificationUseCase(notifRepo, directory.NewUserAdminDirectory(userRepo), notifiers, tasks, logger)

	// ---- Use cases ----
	premiumUC := usecase.NewPremiumUseCase(userRepo, tm, catalog, cfg.BaseQuotas(), logger)
	allocator := usecase.NewAmountAllocator(orderRepo, catalog, cfg.Payment.SequencePoolSize)
	orderUC := usecase.NewOrderUseCase(orderRepo, tm, catalog, allocator, codec, validator, limiter, premiumUC, notifyUC,
		usecase.OrderSettings{
			PayeeVPA:       cfg.Payment.PayeeVPA,
			PayeeName:      cfg.Payment.PayeeName,
			Window:         cfg.Payment.OrderWindow,
			SubmittedGrace: cfg.Scheduler.SubmittedGrace,
			CreateLimit:    cfg.Payment.CreateLimit,
			ClaimLimit:     cfg.Payment.ClaimLimit,
			LimitWindow:    cfg.Payment.LimitWindow,
		}, logger)
	reconUC := usecase.NewReconciliationUseCase(txnRepo, orderRepo, tm, locker, premiumUC, notifyUC,
		usecase.ReconciliationSettings{
			FuzzyTolerance:      tolerance,
			AutoVerifyThreshold: cfg.Reconciliation.AutoVerifyThreshold,
			ImportLockTTL:       cfg.Reconciliation.ImportLockTTL,
		}, logger)

	// ---- Background sweeps ----
	go func() { _ = sched.NewExpiryWorker(cfg.Scheduler.OrderSweepInterval, orderUC, logger).Run(ctx) }()
	go func() { _ = sched.NewPremiumWorker(cfg.Scheduler.PremiumSweepInterval, premiumUC, logger).Run(ctx) }()
	go func() {
		w := sched.NewRetentionWorker(cfg.Scheduler.RetentionInterval, orderUC, notifyUC,
			cfg.Scheduler.OrderRetention, cfg.Scheduler.NotificationRetention, logger)
		_ = w.Run(ctx)
	}()

	// ---- HTTP API ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	srv := api.NewServer(orderUC, reconUC, notifyUC, catalog, auth, api.Settings{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetPaymentStorePool(metrics.PoolSnapshot{
				Total:         s.TotalConns(),
				Idle:          s.IdleConns(),
				Acquired:      s.AcquiredConns(),
				Max:           s.MaxConns(),
				EmptyAcquires: s.EmptyAcquireCount(),
			})
		}
	}
}
