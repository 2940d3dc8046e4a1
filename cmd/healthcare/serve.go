package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/healthcare-records/internal/handler/prometheus"
	"github.com/jwalitptl/healthcare-records/internal/middleware"
	"github.com/jwalitptl/healthcare-records/internal/router"
	"github.com/jwalitptl/healthcare-records/pkg/auth"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect the wallet and serve the page and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}
}

func runServer(a *app) error {
	cfg := a.cfg
	zl := a.log.Zerolog()

	stopPublisher := a.startPublisher()
	defer stopPublisher()

	// A failed connect leaves the session empty; readiness reports it.
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := a.session.Connect(connectCtx); err == nil {
		state := a.session.State()
		a.log.Info("Wallet connected", "account", state.Account, "owner", state.Owner())
	}
	cancel()

	var jwtSvc auth.JWTService
	if cfg.JWT.Secret != "" {
		svc, err := auth.NewHMACService(cfg.JWT.Secret, cfg.JWT.Issuer)
		if err != nil {
			return err
		}
		jwtSvc = svc
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	routerConfig := router.DefaultRouterConfig()
	routerConfig.Mode = cfg.Server.Mode
	routerConfig.CORS = corsConfig
	routerConfig.RateLimit = middleware.RateLimiterConfig{
		Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
		Burst: cfg.RateLimit.Burst,
	}

	r, err := router.NewRouter(
		zl,
		middleware.NewAuthMiddleware(jwtSvc),
		a.session,
		a.transactions,
		prometheus.New(a.registry),
		routerConfig,
	)
	if err != nil {
		return err
	}
	r.Setup()

	cleanupDone := make(chan struct{})
	defer close(cleanupDone)
	go r.RateLimiter().Cleanup(cleanupDone)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout(),
		WriteTimeout:      cfg.Server.Timeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Starting server", "addr", srv.Addr, "auth", jwtSvc != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	a.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info("Server exited properly")
	return nil
}
