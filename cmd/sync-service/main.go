package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/noghresod/sync-service-go/internal/account"
	"github.com/noghresod/sync-service-go/internal/auth"
	"github.com/noghresod/sync-service-go/internal/cart"
	"github.com/noghresod/sync-service-go/internal/catalog"
	"github.com/noghresod/sync-service-go/internal/config"
	"github.com/noghresod/sync-service-go/internal/db"
	"github.com/noghresod/sync-service-go/internal/events"
	"github.com/noghresod/sync-service-go/internal/favorites"
	httpapi "github.com/noghresod/sync-service-go/internal/http"
	"github.com/noghresod/sync-service-go/internal/logging"
	"github.com/noghresod/sync-service-go/internal/order"
	"github.com/noghresod/sync-service-go/internal/ratelimit"
	"github.com/noghresod/sync-service-go/internal/remote"
)

func main() {
	cfg := config.Load()
	logger := logging.New()
	log := logging.Component(logger, "main")

	if err := db.RunMigrations(cfg.DatabaseDSN, logging.Component(logger, "migrate")); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}

	sqlDB, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.OpenPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("open pool")
	}
	defer pool.Close()

	tokens := auth.NewSQLStore(sqlDB)

	client, err := remote.NewClient(cfg.APIBaseURL, cfg.UpstreamTimeout, tokens, logging.Component(logger, "remote"))
	if err != nil {
		log.WithError(err).Fatal("build remote client")
	}

	catalogSvc := catalog.NewService(
		catalog.NewPostgresRepository(pool),
		remote.NewCatalogClient(client),
		cfg.CatalogTTL,
		cfg.RetryCount,
		logging.Component(logger, "catalog"),
	)

	orderSvc := order.NewService(
		order.NewRepository(sqlDB),
		remote.NewOrdersClient(client),
		cfg.OrdersTTL,
		logging.Component(logger, "order"),
	)

	cartSvc := cart.NewService(
		cart.NewRepository(sqlDB),
		remote.NewCartClient(client),
		orderSvc,
		cfg.CartTTL,
		logging.Component(logger, "cart"),
	)

	logins, err := ratelimit.NewWindow(cfg.LoginAttempts, cfg.LoginWindow, 1024)
	if err != nil {
		log.WithError(err).Fatal("build login limiter")
	}

	accountSvc := account.NewService(
		account.NewRepository(sqlDB),
		remote.NewAccountClient(client),
		tokens,
		logins,
		cfg.ProfileTTL,
		logging.Component(logger, "account"),
	)

	favoritesSvc := favorites.NewService(
		favorites.NewRepository(sqlDB),
		remote.NewFavoritesClient(client),
		logging.Component(logger, "favorites"),
	)

	// The broker is optional: without it order statuses still converge on
	// the next sync, just not push-driven.
	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.WithError(err).Fatal("connect to RabbitMQ")
		}
		defer conn.Close()

		err = events.StartOrderStatusConsumer(ctx, conn, orderSvc,
			events.NewProcessedStore(sqlDB), logging.Component(logger, "events"))
		if err != nil {
			log.WithError(err).Fatal("start order status consumer")
		}
	} else {
		log.Info("RABBITMQ_URL empty, order status consumer disabled")
	}

	handler := httpapi.NewHandler(catalogSvc, cartSvc, orderSvc, accountSvc, favoritesSvc,
		logging.Component(logger, "http"))
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		CORSAllowOrigins:   cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	log.Info("shutdown complete")
}
