package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/inventory/internal/config"
	"github.com/stockledger/inventory/internal/db"
	"github.com/stockledger/inventory/internal/events"
	grpcserver "github.com/stockledger/inventory/internal/grpc"
	"github.com/stockledger/inventory/internal/httpapi"
	"github.com/stockledger/inventory/internal/idempotency"
	"github.com/stockledger/inventory/internal/metrics"
	"github.com/stockledger/inventory/internal/repo"
	"github.com/stockledger/inventory/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Inventory service starting", zap.String("db_driver", cfg.DBDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	m := metrics.New()
	checks := map[string]grpcserver.Check{"database": database.Ping}

	var idem httpapi.IdempotencyStore
	if cfg.RedisURL != "" {
		store, err := idempotency.NewStore(cfg.RedisURL, cfg.IdempotencyTTL)
		if err != nil {
			log.Fatal("Failed to configure redis", zap.Error(err))
		}
		defer store.Close()
		idem = store
		checks["redis"] = store.Ping
	} else {
		log.Warn("REDIS_URL not set, idempotency keys are not enforced")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RabbitMQURL != "" {
		log.Info("Connecting to RabbitMQ")
		publisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		checks["rabbitmq"] = publisher.Ping

		relay := events.NewRelay(repo.NewOutboxRepository(database, log), publisher, logger.Component(log, "outbox-relay"), m, cfg.OutboxInterval, cfg.OutboxBatchSize)
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		log.Warn("RABBITMQ_URL not set, events stay in the outbox")
	}

	health := grpcserver.NewHealthServer(checks, log)

	gin.SetMode(gin.ReleaseMode)
	api := httpapi.NewServer(httpapi.Options{
		Catalog:     repo.NewCatalogRepository(database, log),
		Ledger:      repo.NewLedgerRepository(database, log),
		Reports:     repo.NewReportRepository(database, log),
		Directory:   repo.NewDirectoryRepository(database, log),
		Health:      health,
		Metrics:     m,
		Idempotency: idem,
		CORSOrigins: cfg.CORSOrigins,
		Log:         logger.Component(log, "http"),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      api.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(logger.Component(log, "grpc"))),
	)
	grpc_health_v1.RegisterHealthServer(grpcServer, health)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("serve grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
	}
	log.Info("Server stopped")
}
