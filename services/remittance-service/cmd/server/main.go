package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/assets"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/config"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/handler"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/ledger"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/lock"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/pubsub"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/repository"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/service"
	"github.com/13507-IN/HorizonPay/shared/pkg/auth"
	"github.com/13507-IN/HorizonPay/shared/pkg/db"
	"github.com/13507-IN/HorizonPay/shared/pkg/logger"
	"github.com/13507-IN/HorizonPay/shared/pkg/metrics"
	"github.com/13507-IN/HorizonPay/shared/pkg/ratelimiter"
)

const serviceName = "remittance-service"

func main() {
	// .env is optional; the container sets real variables
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(serviceName).WithError(err).Fatal("Invalid configuration")
	}

	log := logger.NewLoggerWithOutput(serviceName, cfg.LogLevel, os.Stdout)
	log.Info("Starting Remittance Service...")

	serviceMetrics := metrics.NewMetrics("remittance", prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checks []handler.HealthCheck

	// Store
	var store repository.TransactionStore
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory transaction store; records are lost on restart")
		store = repository.NewMemoryStore()
	} else {
		conn, err := db.NewConnection(ctx, cfg.Database.Config)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer conn.Close()

		if err := db.Migrate(conn.DB, repository.Migrations, "migrations"); err != nil {
			log.WithError(err).Fatal("Failed to apply migrations")
		}
		if err := db.NewSchemaGuard(conn.DB).ValidateTable(ctx, repository.ExpectedSchema); err != nil {
			log.WithError(err).Fatal("Schema validation failed")
		}
		log.Info("Database connected and schema validated")

		go serviceMetrics.CollectDBPoolStats(ctx, conn.DB, 15*time.Second)
		store = repository.NewTransactionRepository(conn.DB)
		checks = append(checks, handler.HealthCheck{Name: "database", Check: conn.Ping})
	}

	// Events and tracking locks
	var (
		publisher pubsub.StatusPublisher = pubsub.NewNoopPublisher()
		locker    lock.Locker            = lock.NewLocalLocker()
	)
	if cfg.Redis.URL != "" {
		client, err := pubsub.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}

		publisher = pubsub.NewRedisPublisherWithClient(client)
		locker = lock.NewRedisLocker(client, cfg.Redis.LockTTL)
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: redisPing(client)})
		log.Info("Connected to Redis")
	} else {
		log.Warn("REDIS_URL not set; status events are dropped and tracking locks are process-local")
	}

	// Ledger
	algod, err := ledger.NewAlgodClient(ledger.AlgodConfig{
		Address: cfg.Ledger.Address,
		Token:   cfg.Ledger.Token,
		Timeout: cfg.Ledger.Timeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create ledger client")
	}
	ledgerClient := ledger.NewBreakerClient(algod, ledger.BreakerConfig{
		ConsecutiveFailures: uint32(cfg.Ledger.BreakerFailures),
		OpenTimeout:         cfg.Ledger.BreakerOpenDelay,
	}, log, func(name string, state float64) {
		serviceMetrics.LedgerBreakerState.WithLabelValues(name).Set(state)
	})
	checks = append(checks, handler.HealthCheck{Name: "ledger", Check: ledgerClient.Health})

	// Assets
	assetCfg, err := assets.LoadConfig(cfg.Assets.File)
	if err != nil {
		log.WithError(err).Fatal("Failed to load asset table")
	}
	if assetCfg, err = assetCfg.ApplyEnvOverrides(os.LookupEnv); err != nil {
		log.WithError(err).Fatal("Invalid asset id override")
	}
	registry, err := assets.NewRegistry(assetCfg)
	if err != nil {
		log.WithError(err).Fatal("Invalid asset table")
	}

	// Services
	tracker := service.NewConfirmationTracker(ledgerClient, store, locker, publisher, serviceMetrics, log, service.TrackerConfig{
		Multiplier:   cfg.Tracking.BackoffMultiplier,
		MaxPollDelay: cfg.Tracking.MaxPollDelay,
	})
	remittanceService := service.NewRemittanceService(
		registry,
		ledgerClient,
		service.NewTransactionBuilder(registry, cfg.Assets.NoteMaxBytes),
		service.NewSubmissionGateway(ledgerClient, store, publisher, serviceMetrics, log),
		tracker,
		service.NewHistoryReconciler(store, tracker, service.HistoryConfig{
			DefaultLimit:     cfg.History.DefaultLimit,
			MaxLimit:         cfg.History.MaxLimit,
			RefreshMaxRounds: cfg.Tracking.RefreshMaxRounds,
			RefreshPollDelay: cfg.Tracking.RefreshPollDelay,
		}),
		service.RemittanceConfig{
			TrackAfterSubmit: cfg.Tracking.AfterSubmit,
			SubmitMaxRounds:  cfg.Tracking.MaxRounds,
			SubmitPollDelay:  cfg.Tracking.PollDelay,
		},
		log,
	)

	// HTTP
	remittanceHandler, err := handler.NewRemittanceHandler(remittanceService, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create HTTP handler")
	}
	sendLimiter := ratelimiter.New(cfg.RateLimit.SendRPS, cfg.RateLimit.SendBurst, 10*time.Minute)

	httpServer := &http.Server{
		Addr: ":" + cfg.Server.HTTPPort,
		Handler: handler.NewRouter(handler.RouterConfig{
			Remittance:     remittanceHandler,
			Health:         handler.NewHealthHandler(3*time.Second, checks...),
			TokenValidator: auth.NewJWTValidator(cfg.Auth.JWTSecret),
			SendLimiter:    sendLimiter,
			Metrics:        serviceMetrics,
			MetricsHandler: promhttp.Handler(),
			Logger:         log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC carries health and reflection for the mesh
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.UnaryServerInterceptor(log),
			metrics.UnaryServerInterceptor(serviceMetrics),
		),
		grpc.ChainStreamInterceptor(logger.StreamServerInterceptor(log)),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
	if err != nil {
		log.WithError(err).WithField("port", cfg.Server.GRPCPort).Fatal("Failed to listen")
	}

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC server stopped")
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	log.WithField("http_port", cfg.Server.HTTPPort).WithField("grpc_port", cfg.Server.GRPCPort).
		Info("Remittance Service started")

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down Remittance Service...")
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown did not complete")
	}
	grpcServer.GracefulStop()
	cancel()

	// closes the shared Redis client as well
	if err := publisher.Close(); err != nil {
		log.WithError(err).Warn("Failed to close publisher")
	}
	log.Info("Remittance Service stopped")
}

func redisPing(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
