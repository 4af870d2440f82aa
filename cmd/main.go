package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmflames/ticketing/internal/config"
	"github.com/pmflames/ticketing/internal/database"
	"github.com/pmflames/ticketing/internal/handler"
	"github.com/pmflames/ticketing/internal/mailer"
	"github.com/pmflames/ticketing/internal/payment"
	"github.com/pmflames/ticketing/internal/repository"
	"github.com/pmflames/ticketing/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration from environment variables
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting ticketing service", "environment", cfg.App.Environment)

	// Initialize database connections
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connections", "error", err)
		}
	}()

	// Ensure the tickets table exists
	if err := database.Migrate(ctx, db.Postgres); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Wire services against the production store
	store := repository.NewStore(db.Postgres)
	verification := service.NewVerificationService(store)

	// The payment gateway and mailer are optional collaborators; issuance
	// skips them when the credentials are absent.
	var gateway *payment.Client
	var payments service.PaymentVerifier
	if cfg.Paystack.SecretKey != "" {
		gateway = payment.NewClient(cfg.Paystack)
		payments = gateway
	}
	var mail service.TicketMailer
	if cfg.Resend.APIKey != "" {
		mail = mailer.NewClient(cfg.Resend)
	}
	issuance := service.NewIssuanceService(store, payments, mail)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler.New(verification, issuance, gateway).Register(e)

	// Add health check endpoint
	e.GET("/health", func(c echo.Context) error {
		hostname, _ := os.Hostname()
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "ok",
			"service":  "ticketing",
			"hostname": hostname,
		})
	})

	// Add database health check endpoint
	e.GET("/health/db", func(c echo.Context) error {
		if err := db.Postgres.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "error",
				"message": "postgres unavailable",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "ok",
			"postgres": "connected",
		})
	})

	// Add Prometheus metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Create server with configuration optimized for high concurrency
	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		// Use h2c so we can serve HTTP/2 without TLS
		Handler: h2c.NewHandler(e, &http2.Server{
			MaxConcurrentStreams: 1000,
		}),
	}

	// Start server in goroutine
	go func() {
		slog.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
