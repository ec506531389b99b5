package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dukerupert/larder/internal/backup"
	"github.com/dukerupert/larder/internal/config"
	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/logging"
	"github.com/dukerupert/larder/internal/push"
	"github.com/dukerupert/larder/internal/recipe"
	"github.com/dukerupert/larder/internal/server"
	"golang.org/x/sync/errgroup"
)

// serve runs the HTTP server along with the push scheduler, scheduled backups
// and rate limiter cleanup until ctx is cancelled.
func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Logger.Level, cfg.Logger.Format)

	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv, err := server.New(db, server.Options{
		Recipe: recipe.Config{
			BaseURL: cfg.Recipe.BaseURL,
			AppID:   cfg.Recipe.AppID,
			AppKey:  cfg.Recipe.AppKey,
		},
		Blob: blobConfig(cfg),
		Push: push.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		},
		ExpiringDays:      cfg.Alerts.ExpiringDays,
		LowStockThreshold: cfg.Alerts.LowStockThreshold,
	}, logger)
	if err != nil {
		return err
	}

	// No read or write timeout: websocket connections are long lived.
	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("larder listening", "addr", httpServer.Addr,
			"recipes", cfg.Recipe.BaseURL != "", "images", cfg.S3.Enabled(), "push", srv.PushScheduler() != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if sched := srv.PushScheduler(); sched != nil {
		g.Go(func() error { return sched.Run(ctx) })
	}

	if bcfg := backupConfig(cfg); bcfg.Enabled() {
		mgr, err := backup.NewManager(bcfg, db, logger)
		if err != nil {
			return err
		}
		interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
		g.Go(func() error { return mgr.Run(ctx, interval) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	})

	return g.Wait()
}
