package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callnet/internal/core/ports"
	"callnet/internal/core/services"
	httphandlers "callnet/internal/handlers/http"
	"callnet/internal/infrastructure/events"
	"callnet/internal/infrastructure/middleware"
	"callnet/internal/infrastructure/monitoring"
	repositories "callnet/internal/infrastructure/repositories"
	signalinfra "callnet/internal/infrastructure/signal"
	"callnet/pkg/config"
	"callnet/pkg/logger"
	"callnet/pkg/tracing"

	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/callnet/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "callnet",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracerProvider.Shutdown(ctx)
	}()

	// Storage
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	sessionRepo := repoFactory.CreateSessionRepository()

	// Monitoring
	collector := monitoring.NewPrometheusCollector()
	healthChecker := monitoring.NewHealthChecker()
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}
	healthChecker.AddRepositoryCheck(sessionRepo, 30*time.Second, 2*time.Second)

	// Core services
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	callService := services.NewCallService(sessionRepo, log)
	qualityService := services.NewQualityService(cfg, log)
	bitrateService := services.NewBitrateService(cfg, log)
	timerService := services.NewTimerService()

	registry := signalinfra.NewRegistry(log)
	dispatcher := signalinfra.NewNotificationDispatcher(registry, log)

	var publisher *events.RedisPublisher
	if client := repoFactory.RedisClient(); client != nil {
		publisher = events.NewRedisPublisher(client, cfg.Redis.EventChannel, log)
	}

	signalingService := services.NewSignalingService(
		callService,
		qualityService,
		bitrateService,
		timerService,
		registry,
		dispatcher,
		eventPublisherOrNil(publisher),
		collector,
		cfg,
		log,
	)

	// WebSocket signal server
	wsServer := signalinfra.NewWebSocketServer(signalingService, registry, authService, cfg, log)

	signalMux := http.NewServeMux()
	signalMux.HandleFunc("/ws", wsServer.HandleWebSocket)
	signalMux.HandleFunc("/health", wsServer.HealthCheck)

	signalSrv := &http.Server{
		Addr:    cfg.Signal.Address,
		Handler: signalMux,
	}

	// HTTP API server
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)
	authHandler.SetupRoutes(router)

	callHandler := httphandlers.NewCallHandler(signalingService, registry, iceServersFromConfig(cfg))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.POST("/calls", callHandler.InitiateCall)
		api.POST("/calls/:id/answer", callHandler.AnswerCall)
		api.POST("/calls/:id/reject", callHandler.RejectCall)
		api.POST("/calls/:id/end", callHandler.EndCall)
		api.GET("/calls/:id", callHandler.GetCallStatus)
		api.GET("/calls", callHandler.ListActiveCalls)
		api.GET("/webrtc/ice-servers", callHandler.GetICEServers)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if !healthChecker.IsReady(ctx) {
			c.JSON(503, gin.H{
				"status":    "not_ready",
				"timestamp": time.Now(),
				"checks":    healthChecker.GetReadinessStatus(ctx).Checks,
			})
			return
		}

		c.JSON(200, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	apiSrv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 2)
	go func() {
		log.Infof("Starting callnet API server on %s", cfg.Server.Address)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	go func() {
		log.Infof("Starting callnet signal server on %s", cfg.Signal.Address)
		if err := signalSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down callnet...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during API server shutdown", "error", err)
		apiSrv.Close()
	}
	if err := signalSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during signal server shutdown", "error", err)
		signalSrv.Close()
	}

	timerService.Shutdown()

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("callnet stopped")
}

func iceServersFromConfig(cfg *config.Config) []webrtc.ICEServer {
	var iceServers []webrtc.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	return iceServers
}

// eventPublisherOrNil keeps a typed-nil *RedisPublisher from sneaking into
// the ports.EventPublisher interface value.
func eventPublisherOrNil(p *events.RedisPublisher) ports.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
