// File: cmd/reconcile/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"typing-premium-payments/internal/config"
	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/infra/adapters/directory"
	tele "typing-premium-payments/internal/infra/adapters/telegram"
	pg "typing-premium-payments/internal/infra/db/postgres"
	"typing-premium-payments/internal/infra/i18n"
	"typing-premium-payments/internal/infra/logging"
	red "typing-premium-payments/internal/infra/redis"
	"typing-premium-payments/internal/infra/worker"
	"typing-premium-payments/internal/usecase"
)

// reconcile imports one bank statement CSV outside the API, e.g. from a
// nightly bank export job:
//
//	reconcile -config config.yaml -file statement.csv -admin <admin-user-id>
func main() {
	file := flag.String("file", "", "bank statement CSV to import")
	admin := flag.String("admin", "", "id of the admin the import is recorded under")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *file == "" || *admin == "" {
		fmt.Fprintln(os.Stderr, "usage: reconcile -file statement.csv -admin <id> [-config config.yaml]")
		os.Exit(2)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	catalog, err := cfg.PlanCatalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("plans")
	}
	tolerance, err := cfg.FuzzyTolerance()
	if err != nil {
		logger.Fatal().Err(err).Msg("reconciliation.fuzzy_tolerance")
	}

	tm := pg.NewTxManager(pool)
	users := pg.NewPostgresUserRepo(pool)
	orders := pg.NewOrderRepo(pool)

	u, err := users.FindByID(ctx, repository.NoTX, *admin)
	if err != nil || !u.IsAdmin {
		logger.Fatal().Err(err).Str("admin", *admin).Msg("importer must be an existing admin")
	}

	// Delivery is drained before exit so admins still hear about reviews.
	tasks := worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	tasks.Start(ctx)
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
	notifyUC := usecase.NewNotificationUseCase(pg.NewNotificationRepo(pool), directory.NewUserAdminDirectory(users), notifiers, tasks, logger)
	premiumUC := usecase.NewPremiumUseCase(users, tm, catalog, cfg.BaseQuotas(), logger)
	reconUC := usecase.NewReconciliationUseCase(pg.NewBankTransactionRepo(pool), orders, tm, red.NewLocker(redisClient), premiumUC, notifyUC,
		usecase.ReconciliationSettings{
			FuzzyTolerance:      tolerance,
			AutoVerifyThreshold: cfg.Reconciliation.AutoVerifyThreshold,
			ImportLockTTL:       cfg.Reconciliation.ImportLockTTL,
		}, logger)

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal().Err(err).Msg("open statement")
	}
	defer f.Close()

	res, err := reconUC.ImportStatement(ctx, f, *admin)
	tasks.Stop()
	if err != nil {
		logger.Error().Err(err).Str("file", *file).Msg("import failed")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	if len(res.NeedsReview) > 0 || len(res.Errors) > 0 {
		logger.Warn().Int("needs_review", len(res.NeedsReview)).Int("errors", len(res.Errors)).Msg("statement imported with items to review")
	}
}
