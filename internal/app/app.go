package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Run поднимает REST API витрины, сервер метрик и gRPC health и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}
	pricePolicy, err := orders.ParsePricePolicy(cfg.PricePolicy)
	if err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, deps.customers, deps.catalog); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info("demo data seeded")
	}

	orderMetrics := metrics.NewOrderMetrics()
	catalogLayer := initCatalog(cfg, deps.catalog, orderMetrics, logger)
	defer catalogLayer.close(logger)

	// Kafka опциональна: без неё события копятся в outbox (postgres) или не пишутся вовсе (memory).
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	orderOptions := []orders.Option{
		orders.WithLogger(logger.WithField("layer", "orders")),
		orders.WithMetrics(orderMetrics),
		orders.WithTimeline(deps.timelineRepo),
		orders.WithPricePolicy(pricePolicy),
		orders.WithHistoryLimit(cfg.HistoryLimit),
	}
	outboxEnabled := kafkaProducer != nil || cfg.StorageDriver == StorageDriverPostgres
	if outboxEnabled {
		orderOptions = append(orderOptions, orders.WithOutbox(deps.outboxRepo))
	}
	orderService := orders.NewService(deps.customers, deps.orders, catalogLayer.lookup, orderOptions...)
	customerService := customers.NewService(deps.customers, deps.orders, logger.WithField("layer", "customers"))

	outboxCancel, outboxDone := startOutboxWorker(ctx, cfg, deps.outboxRepo, kafkaProducer, logger)
	defer shutdownOutboxWorker(outboxCancel, outboxDone, logger)
	if outboxEnabled {
		cleanupCancel, cleanupDone := startOutboxCleanup(ctx, cfg, deps.outboxRepo, logger)
		defer shutdownOutboxWorker(cleanupCancel, cleanupDone, logger)
	}

	healthHandler := newHealthHandler(deps, catalogLayer)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	api := httpapi.NewHandler(orderService, customerService, httpapi.Config{
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger.WithField("layer", "http"),
	})
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	httpSrv := &http.Server{
		Handler:           otelhttp.NewHandler(api.Routes(), "storefront-http"),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	grpcServer, healthServer := newGRPCServer(logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			shutdownHTTP(httpSrv, logger)
			return fmt.Errorf("listen grpc: %w", err)
		}
		go func() {
			logger.Infof("gRPC health слушает %s", grpcLis.Addr())
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(httpSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(httpSrv, logger)
		return err
	}
}

// newHealthHandler регистрирует проверки компонентов. Postgres критичен,
// Redis и outbox только переводят сервис в degraded.
func newHealthHandler(deps *runtimeDependencies, cat catalogStack) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		handler.RegisterChecker("storage", deps.storageChecker)
	}
	if cat.redis != nil {
		handler.RegisterChecker("catalog-cache", healthcheck.NewOptionalChecker("catalog-cache", func(ctx context.Context) error {
			return cat.redis.Ping(ctx).Err()
		}))
	}
	if deps.outboxRepo != nil {
		handler.RegisterChecker("outbox", healthcheck.NewOptionalChecker("outbox", func(ctx context.Context) error {
			_, err := deps.outboxRepo.Stats(ctx)
			return err
		}))
	}
	return handler
}

// newGRPCServer собирает gRPC сервер со стандартным health-сервисом и reflection.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stoppedCh := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
