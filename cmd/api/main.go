package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/leftcoastfs/bridge-backend/api/controllers"
	"github.com/leftcoastfs/bridge-backend/api/routes"
	"github.com/leftcoastfs/bridge-backend/internal/accounting"
	"github.com/leftcoastfs/bridge-backend/internal/directory"
	"github.com/leftcoastfs/bridge-backend/internal/provisioning"
	"github.com/leftcoastfs/bridge-backend/internal/relay"
	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/config"
	"github.com/leftcoastfs/bridge-backend/pkg/currency"
	"github.com/leftcoastfs/bridge-backend/pkg/db"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
	"github.com/leftcoastfs/bridge-backend/pkg/migrate"
	"github.com/leftcoastfs/bridge-backend/pkg/pubsub"
	"github.com/leftcoastfs/bridge-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	booksClient, err := books.NewClient(context.Background(), cfg.Books, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create books client", err)
		os.Exit(1)
	}

	currencyClient, err := currency.NewClient(context.Background(), cfg.Currency, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create currency client", err)
		os.Exit(1)
	}

	directoryService, err := directory.NewService(directory.ServiceParams{
		Repo: directory.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create directory service", err)
		os.Exit(1)
	}

	accountingService, err := accounting.NewService(accounting.ServiceParams{
		Books:     booksClient,
		Directory: directoryService,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounting service", err)
		os.Exit(1)
	}

	provisioningService, err := provisioning.NewService(provisioning.ServiceParams{
		Accounting:        accountingService,
		Currency:          currencyClient,
		Directory:         directoryService,
		Logger:            logg,
		BridgeAccountName: cfg.Books.BridgeAccountName,
		EquityAccountName: cfg.Books.EquityAccountName,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create provisioning service", err)
		os.Exit(1)
	}

	relayService, err := relay.NewService(relay.ServiceParams{
		Directory:         directoryService,
		PurchasePublisher: relay.GCPPublisher(pubsubClient.PurchasePublisher()),
		PaymentPublisher:  relay.GCPPublisher(pubsubClient.PaymentPublisher()),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create relay service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			Directory:    directoryService,
			Provisioning: provisioningService,
			Relay:        relayService,
			ReadyChecks: map[string]controllers.Pinger{
				"db":     dbClient,
				"redis":  redisClient,
				"pubsub": pubsubClient,
			},
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "error shutting down api server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
