package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apporder "github.com/orderledger/backend/internal/application/order"
	"github.com/orderledger/backend/internal/application/projection"
	"github.com/orderledger/backend/internal/application/query"
	"github.com/orderledger/backend/internal/domain/shared"
	"github.com/orderledger/backend/internal/infrastructure/cache"
	"github.com/orderledger/backend/internal/infrastructure/config"
	"github.com/orderledger/backend/internal/infrastructure/event"
	"github.com/orderledger/backend/internal/infrastructure/logger"
	"github.com/orderledger/backend/internal/infrastructure/persistence"
	"github.com/orderledger/backend/internal/interfaces/http/handler"
	"github.com/orderledger/backend/internal/interfaces/http/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file (TOML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("starting orderledger",
		zap.String("env", cfg.App.Env),
		zap.String("database_driver", cfg.Database.Driver),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Persistence: event store plus read model store on the same database.
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	serializer := event.NewOrderSerializer()

	eventStore := persistence.NewGormEventStore(db.DB, serializer)
	if err := eventStore.Migrate(); err != nil {
		log.Fatal("failed to migrate event store", zap.Error(err))
	}

	viewStore := persistence.NewGormViewStore(db.DB)
	if err := viewStore.Migrate(); err != nil {
		log.Fatal("failed to migrate view store", zap.Error(err))
	}

	// Projection engine owns the read model and consumes append notifications.
	engine := projection.NewEngine(eventStore, viewStore, log, projection.Config{
		BufferSize:  cfg.Projection.BufferSize,
		MaxAttempts: cfg.Projection.MaxAttempts,
		RetryDelay:  cfg.Projection.RetryDelay,
	})
	eventStore.Subscribe(engine)

	runCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	if err := engine.Start(runCtx); err != nil {
		log.Fatal("failed to start projection engine", zap.Error(err))
	}

	// Attempt-token store for external side effect deduplication.
	var tokens shared.IdempotencyStore
	if cfg.Redis.Enabled {
		tokens, err = cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
	} else {
		tokens = cache.NewInMemoryIdempotencyStore()
	}
	defer tokens.Close()

	idemCfg := shared.DefaultIdempotencyConfig()
	payments := apporder.NewIdempotentPaymentAuthorizer(apporder.NoopPaymentAuthorizer{}, tokens, idemCfg)
	notifications := apporder.NewIdempotentNotificationDispatcher(
		apporder.LoggingNotificationDispatcher{Logger: log}, tokens, idemCfg)

	commands := apporder.NewCommandHandler(eventStore, payments, notifications, log, apporder.RetryConfig{
		MaxRetries:  cfg.Command.MaxRetries,
		BaseBackoff: cfg.Command.BaseBackoff,
		MaxBackoff:  cfg.Command.MaxBackoff,
	})
	queries := query.NewOrderQueryService(viewStore, log)

	r := router.New(log)
	r.Register(handler.NewOrderHandler(commands, log))
	r.Register(handler.NewQueryHandler(queries, log))
	r.Register(handler.NewAdminHandler(engine, log))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r.Setup(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	// Drain in-flight projections before exit so the watermark stays honest.
	if err := engine.Stop(ctx); err != nil {
		log.Warn("projection engine stop", zap.Error(err))
	}

	log.Info("server exited")
}
