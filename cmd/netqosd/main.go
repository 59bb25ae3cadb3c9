package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"
	"netqos/internal/core/services"
	httphandlers "netqos/internal/handlers/http"
	"netqos/internal/infrastructure/broadcast"
	"netqos/internal/infrastructure/middleware"
	"netqos/internal/infrastructure/monitoring"
	"netqos/internal/infrastructure/predictor"
	"netqos/internal/infrastructure/repositories"
	"netqos/pkg/config"
	"netqos/pkg/logger"
	"netqos/pkg/tracing"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	log := zlog.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "netqos",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}()

	factory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repositories", "error", err)
	}
	defer factory.Close()

	sampleRepo := factory.CreateSampleRepository()
	ruleRepo := factory.CreateRuleRepository()
	alertRepo := factory.CreateAlertRepository()

	ruleService := services.NewRuleService(ruleRepo, log)
	if err := ruleService.Seed(context.Background(), domain.DefaultRules()); err != nil {
		log.Fatalw("failed to seed default rules", "error", err)
	}

	aggregator := services.NewAggregator(cfg.Engine.SilenceInterval, cfg.Engine.TickInterval, log)
	allocator := services.NewAllocator(cfg.Engine.HeadroomFactor, log)
	evaluator := services.NewAlertEvaluator(cfg.Engine.AlertCooldown, log)

	var pred ports.Predictor
	if cfg.Predictor.Endpoint != "" {
		pred = predictor.NewHTTPPredictor(cfg.Predictor.Endpoint, cfg.Predictor.RequestTimeout, cfg.Predictor.MaxRetries, log)
		log.Infow("using external predictor", "endpoint", cfg.Predictor.Endpoint)
	} else {
		pred = predictor.NewRulePredictor(log)
		log.Info("using built-in rule predictor")
	}

	hub := broadcast.NewHub(cfg.Broadcast.QueueSize, log)
	defer hub.Close()

	var observer ports.TickObserver
	if cfg.Monitoring.PrometheusEnabled {
		collector := monitoring.NewPrometheusCollector()
		hub.OnDrop(collector.RecordDroppedMessage)
		hub.OnCountChange(collector.RecordSubscriberCount)
		observer = collector
	}

	engine := services.NewEngine(
		services.EngineConfig{
			TickInterval:        cfg.Engine.TickInterval,
			UpstreamTimeout:     cfg.Engine.UpstreamTimeout,
			SilenceInterval:     cfg.Engine.SilenceInterval,
			AlertCooldown:       cfg.Engine.AlertCooldown,
			TotalBandwidthMbps:  cfg.Engine.TotalBandwidthMbps,
			ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
			HeadroomFactor:      cfg.Engine.HeadroomFactor,
		},
		sampleRepo,
		alertRepo,
		pred,
		hub,
		observer,
		ruleService,
		aggregator,
		allocator,
		evaluator,
		tracing.Tracer(),
		log,
	)

	wsServer := broadcast.NewWebSocketServer(
		hub,
		cfg.Broadcast.PingInterval,
		cfg.Broadcast.PongTimeout,
		cfg.Broadcast.WriteTimeout,
		cfg.Broadcast.ConnectionsPerMinute,
		log,
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	handler := httphandlers.NewQosHandler(
		engine,
		ruleService,
		aggregator,
		alertRepo,
		sampleRepo,
		wsServer,
		func(c *gin.Context) error {
			return factory.HealthCheck(c.Request.Context())
		},
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	engineCtx, stopEngine := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(engineCtx)
	}()

	go func() {
		log.Infow("http server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	stopEngine()
	select {
	case <-engineDone:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn("engine did not stop within shutdown timeout")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http server shutdown failed", "error", err)
	}

	log.Info("stopped")
}
