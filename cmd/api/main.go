package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/marketplace-orders/internal/cart"
	"github.com/safar/marketplace-orders/internal/catalog"
	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/events"
	"github.com/safar/marketplace-orders/internal/httpapi"
	"github.com/safar/marketplace-orders/internal/inventory"
	"github.com/safar/marketplace-orders/internal/logging"
	"github.com/safar/marketplace-orders/internal/orders"
	"github.com/safar/marketplace-orders/internal/ratings"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("connected to database")

	if cfg.Database.MigrateOnStart {
		version, err := database.Migrate(db, database.DirectionUp)
		if err != nil {
			return err
		}
		logger.Info("schema migrated", zap.Uint("version", version))
	}

	publisher := newPublisher(cfg.Events, logger)
	defer publisher.Close()

	gateOpts := inventory.DefaultOptions()
	gateOpts.MaxRetries = cfg.Database.TxMaxRetries
	gateOpts.CompensationMaxElapsed = cfg.Checkout.CompensationMaxElapsed
	gate := inventory.NewGate(db, gateOpts)

	orderOpts := orders.DefaultOptions()
	orderOpts.MaxRetries = cfg.Database.TxMaxRetries
	orderOpts.MaxPageSize = cfg.Paging.MaxOrdersPageSize

	ratingOpts := ratings.DefaultOptions()
	ratingOpts.MaxRetries = cfg.Database.TxMaxRetries
	ratingOpts.MaxPageSize = cfg.Paging.MaxRatingsPageSize

	api := httpapi.NewServer(httpapi.Services{
		Carts:   cart.NewService(db),
		Orders:  orders.NewService(db, gate, publisher, orderOpts),
		Ratings: ratings.NewService(db, ratingOpts),
		Catalog: catalog.NewService(db, cfg.Paging.MaxProductsPageSize),
		DB:      db,
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// newPublisher falls back to dropping events when no broker is configured or
// the broker is unreachable at startup.
func newPublisher(cfg config.EventsConfig, logger *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		logger.Info("event publishing disabled")
		return events.NopPublisher{}
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		logger.Warn("event broker unavailable, events will be dropped", zap.Error(err))
		return events.NopPublisher{}
	}

	logger.Info("publishing events", zap.String("exchange", cfg.Exchange))
	return publisher
}
