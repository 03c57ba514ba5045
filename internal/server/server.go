package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m2tx/tutor_agent/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents server configuration.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns the server configuration for port. WriteTimeout
// covers a whole tutoring turn, including several model calls.
func DefaultConfig(port string) Config {
	return Config{
		Port:         port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
}

// NewRouter creates the gin engine with middleware and all routes. The
// collection routes are only mounted when collections is not nil.
func NewRouter(h *Handler, collections *CollectionsHandler, logger logging.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(logger))
	router.Use(recoveryMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.POST("/chat", h.Chat)
	api.GET("/history", h.GetHistory)
	api.DELETE("/history", h.DeleteHistory)
	if collections != nil {
		collections.register(api)
	}

	return router
}

// Start serves router until SIGINT or SIGTERM, then shuts down gracefully.
func Start(cfg Config, router http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
