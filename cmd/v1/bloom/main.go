// Command bloom runs the Signaling Server: the /ws WebSocket that brokers
// CreateRoom/JoinRoom/LeaveRoom and Offer/Answer/IceCandidate relay for
// small rooms, plus the moderator/admin HTTP API and the process's health
// and metrics endpoints.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/admin"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/auth"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/bus"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/config"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/health"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/logging"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/middleware"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/presence"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/ratelimit"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/signaling"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		os.Stderr.WriteString("no .env file found, relying on environment variables\n")
	}

	cfg, err := config.ValidateBloomEnv()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.GetLogger()
	ctx := context.Background()

	if cfg.OtelExporterOTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "bloom", cfg.OtelExporterOTLPEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(ctx) }()
		}
	}

	var redisService *bus.Service
	var presenceMirror *presence.Mirror
	if cfg.RedisEnabled {
		redisService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Error("failed to connect presence mirror, continuing without it", zap.Error(err))
			redisService = nil
		} else {
			presenceMirror = presence.New(redisService)
			defer redisService.Close()
		}
	}

	var validator admin.TokenValidator
	if cfg.SkipAuth {
		log.Warn("admin API authentication DISABLED (SKIP_AUTH=true) - do not use in production")
		validator = &auth.MockValidator{}
	} else {
		if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
			log.Error("AUTH0_DOMAIN and AUTH0_AUDIENCE must be set when SKIP_AUTH is not true")
			os.Exit(1)
		}
		v, err := auth.NewValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			log.Error("failed to initialize admin API auth validator", zap.Error(err))
			os.Exit(1)
		}
		validator = v
		log.Info("admin API JWT validator initialized", zap.String("domain", cfg.Auth0Domain))
	}

	rooms := roommgr.NewManager()
	// The signaling WebSocket has no auth boundary of its own. A nil origin
	// check keeps the upgrader's default: requests without an Origin header,
	// or whose Origin host matches the Host header, are accepted.
	signalingHandler := signaling.NewHandler(rooms, presenceMirror, nil)
	adminHandler := admin.NewHandler(rooms, signalingHandler)
	healthHandler := health.NewHandler(redisService)

	var redisClient *redis.Client
	if redisService != nil {
		redisClient = redisService.Client()
	}
	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient, validator)
	if err != nil {
		log.Error("failed to initialize HTTP rate limiter", zap.Error(err))
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	router.Use(cors.New(corsConfig))

	router.Use(limiter.GlobalMiddleware())

	router.GET("/ws", func(c *gin.Context) {
		if !limiter.CheckWebSocket(c) {
			return
		}
		signalingHandler.ServeWS(c)
	})

	adminGroup := router.Group("/admin")
	adminGroup.Use(admin.AuthMiddleware(cfg, validator))
	adminHandler.RegisterRoutes(adminGroup, limiter.MiddlewareForEndpoint("rooms"), limiter.MiddlewareForEndpoint("kick"))

	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.BloomPort,
		Handler: router,
	}

	go func() {
		log.Info("bloom signaling server starting", zap.String("port", cfg.BloomPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("signaling server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down bloom signaling server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("bloom signaling server forced to shut down", zap.Error(err))
	}
	log.Info("bloom signaling server exited")
}
