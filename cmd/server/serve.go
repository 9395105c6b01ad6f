package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/time-tracking/api"
	"github.com/warp/time-tracking/auth"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/statistics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. On SIGINT/SIGTERM the server stops accepting
connections, waits up to SHUTDOWN_TIMEOUT for active requests, then closes
the cache and the database.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address, e.g. :8080")
	serveCmd.Flags().String("redis-addr", "", "redis address for the statistics cache")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	log := cfg.NewLogger().WithField("service", "time-tracking")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem(cfg.Location)

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	c, closeCache, err := openCache(ctx, cfg, clk, log)
	if err != nil {
		return err
	}
	defer closeCache()

	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL, clk)
	handler := api.NewHandler(st, c, auth.NewAuthenticator(issuer, st), clk, log, statistics.Options{
		Location: cfg.Location,
		UserTTL:  cfg.Stats.UserTTL,
		TeamTTL:  cfg.Stats.TeamTTL,
	})

	scheduler := statistics.NewScheduler(handler.Stats, c, log)
	scheduler.CheckInterval = cfg.Stats.RefreshInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.HTTP.CORSAllowedOrigins}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return err
	}
	log.Info("server stopped")
	return nil
}
