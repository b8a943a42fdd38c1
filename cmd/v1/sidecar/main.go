// Command sidecar runs the Sidecar Session gateway: the /sidecar WebSocket
// that a local VR/AR client connects to, which joins a room on the client's
// behalf via the Signaling Server and exchanges Pose traffic with peers
// over an in-process Syncer.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/config"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/health"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/logging"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/middleware"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/sidecarsession"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		os.Stderr.WriteString("no .env file found, relying on environment variables\n")
	}

	cfg, err := config.ValidateSidecarEnv()
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
		tp, err := tracing.InitTracer(ctx, "sidecar", cfg.OtelExporterOTLPEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(ctx) }()
		}
	}

	sidecarHandler := sidecarsession.NewHandler(cfg.SidecarToken)
	// The sidecar has no external dependency of its own to report on; its
	// readiness always mirrors liveness (nil redis service).
	healthHandler := health.NewHandler(nil)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationID())

	router.GET("/sidecar", sidecarHandler.ServeWS)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.SidecarPort,
		Handler: router,
	}

	go func() {
		log.Info("sidecar gateway starting", zap.String("port", cfg.SidecarPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("sidecar gateway failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down sidecar gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("sidecar gateway forced to shut down", zap.Error(err))
	}
	log.Info("sidecar gateway exited")
}
