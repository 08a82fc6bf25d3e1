package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SergeyBogomolovv/checkout-service/internal/app"
	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/events"
	"github.com/SergeyBogomolovv/checkout-service/internal/gateway"
	"github.com/SergeyBogomolovv/checkout-service/internal/handler"
	"github.com/SergeyBogomolovv/checkout-service/internal/postgres"
	"github.com/SergeyBogomolovv/checkout-service/internal/repo"
	"github.com/SergeyBogomolovv/checkout-service/internal/service"
	"github.com/SergeyBogomolovv/checkout-service/pkg/cache"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"

	"github.com/joho/godotenv"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	storeRepo := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	cartCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)

	paymentGateway := gateway.New(logger, conf.Gateway)
	orderPublisher := events.NewOrderPublisher(logger, conf.Kafka)

	cartService := service.NewCartService(logger, txManager, storeRepo, storeRepo, cartCache)
	orderLedger := service.NewOrderLedger(logger, txManager, storeRepo, cartCache)
	checkoutService := service.NewCheckoutService(
		logger,
		service.CheckoutConfig{
			Currency:      conf.Checkout.Currency,
			SessionTTL:    conf.Checkout.SessionTTL,
			SubmitTimeout: conf.Checkout.SubmitTimeout,
			ValidationTTL: conf.Checkout.ValidationTTL,
		},
		txManager,
		storeRepo,
		storeRepo,
		storeRepo,
		storeRepo,
		paymentGateway,
		orderLedger,
		orderPublisher,
	)

	handler.RegisterMetrics()
	httpHandler := handler.NewHTTPHandler(logger, cartService, checkoutService)

	app := app.New(logger, conf)
	app.SetHTTPHandlers(httpHandler)
	app.SetStarters(cartCache, checkoutService.SessionJanitor())
	app.SetClosers(orderPublisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	panicIfErr("failed to start app", app.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", app.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
