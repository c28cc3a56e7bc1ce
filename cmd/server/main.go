package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/api"
	"dealer-portal/internal/broker"
	"dealer-portal/internal/mailer"
	"dealer-portal/internal/redisclient"
	"dealer-portal/internal/service"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"
	"dealer-portal/internal/worker"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting dealer portal")

	tp, err := util.InitTracer(cfg.Observ.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(store.Options{
		Driver:         cfg.Database.Driver,
		DSN:            cfg.Database.URL,
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		MaxIdleConns:   cfg.Database.MaxIdleConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Without Redis the portal still runs, but idempotency keys and id
	// locks only hold within this process.
	var coord service.Coordinator
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-process coordination", zap.Error(err))
		coord = service.NewLocalCoordinator()
	} else {
		defer redisClient.Close()
		coord = redisClient
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	orderService := service.NewOrderService(db, coord, cfg.Redis)
	notificationService := service.NewNotificationService(db, orderService)
	catalogService := service.NewCatalogService(db, coord, cfg.Redis)
	authService := service.NewAuthService(db, coord, cfg.Auth, cfg.Redis)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	group, groupCtx := errgroup.WithContext(workerCtx)

	relay := worker.NewOutboxRelay(db, broker.NewEventPublisher(producer), cfg.Outbox)
	group.Go(func() error {
		return relay.Start(groupCtx)
	})

	mailConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	mailWorker := worker.NewMailWorker(mailConsumer, db, mailer.NewNotifier(mailer.NewSender(cfg.Mail)))
	group.Go(func() error {
		return mailWorker.Start(groupCtx)
	})

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(otelgin.Middleware(cfg.Observ.ServiceName))
	handler := api.NewHandler(orderService, notificationService, catalogService, authService, db)
	handler.SetupRoutes(router, cfg.Auth)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-groupCtx.Done():
		logger.Error("Background worker stopped", zap.Error(groupCtx.Err()))
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := mailWorker.Stop(); err != nil {
		logger.Warn("Failed to close mail consumer", zap.Error(err))
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Worker exited with error", zap.Error(err))
	}

	logger.Info("Server exited")
}
