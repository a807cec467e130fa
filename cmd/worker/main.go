package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/leftcoastfs/bridge-backend/internal/accounting"
	"github.com/leftcoastfs/bridge-backend/internal/directory"
	"github.com/leftcoastfs/bridge-backend/internal/posting"
	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/config"
	"github.com/leftcoastfs/bridge-backend/pkg/db"
	"github.com/leftcoastfs/bridge-backend/pkg/enums"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
	"github.com/leftcoastfs/bridge-backend/pkg/migrate"
	"github.com/leftcoastfs/bridge-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	booksClient, err := books.NewClient(context.Background(), cfg.Books, logg)
	requireResource(ctx, logg, "books client", err)

	directoryService, err := directory.NewService(directory.ServiceParams{
		Repo: directory.NewRepository(dbClient.DB()),
	})
	requireResource(ctx, logg, "directory service", err)

	accountingService, err := accounting.NewService(accounting.ServiceParams{
		Books:     booksClient,
		Directory: directoryService,
		Logger:    logg,
	})
	requireResource(ctx, logg, "accounting service", err)

	purchaseConsumer, err := posting.NewConsumer(posting.ConsumerParams{
		Side:              enums.TransferSidePurchase,
		Subscription:      pubsubClient.PurchaseSubscription(),
		Accounting:        accountingService,
		Directory:         directoryService,
		Logger:            logg,
		BridgeAccountName: cfg.Books.BridgeAccountName,
	})
	requireResource(ctx, logg, "purchase consumer", err)

	paymentConsumer, err := posting.NewConsumer(posting.ConsumerParams{
		Side:              enums.TransferSidePayment,
		Subscription:      pubsubClient.PaymentSubscription(),
		Accounting:        accountingService,
		Directory:         directoryService,
		Logger:            logg,
		BridgeAccountName: cfg.Books.BridgeAccountName,
	})
	requireResource(ctx, logg, "payment consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "posting worker ready")

	// Either side's receive loop failing takes the process down; the
	// platform restarts it with both sides intact.
	errs := make(chan error, 2)
	go func() { errs <- purchaseConsumer.Run(runCtx) }()
	go func() { errs <- paymentConsumer.Run(runCtx) }()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(runCtx, "posting worker not working", err)
			os.Exit(1)
		}
		stop()
	}

	logg.Info(runCtx, "posting worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
