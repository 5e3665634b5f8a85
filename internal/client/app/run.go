package app

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Run launches from the cache, then drives the online watcher and the
// periodic sync until ctx ends.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	defer a.shutdown()

	if a.cfg.MetricsEnabled {
		go a.serveMetrics(ctx)
	}

	a.Launch(ctx)
	a.CheckOnline(ctx)

	online := time.NewTicker(a.cfg.OnlineCheckInterval)
	defer online.Stop()
	resync := time.NewTicker(a.cfg.SyncInterval)
	defer resync.Stop()

	for {
		select {
		case <-online.C:
			a.CheckOnline(ctx)
		case <-resync.C:
			if err := a.SyncNow(ctx); err != nil {
				a.log.Warn(ctx, "periodic sync failed", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddress,
		Handler:           a.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info(ctx, "metrics endpoint listening", "addr", a.cfg.MetricsAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error(ctx, "metrics endpoint failed", "error", err)
	}
}

// shutdown stops the watcher, drains pushes and releases storage. It is
// safe to call more than once.
func (a *App) shutdown() {
	a.shutdownOnce.Do(func() {
		a.stopWatching()
		a.dispatcher.Close()
		for i := len(a.closers) - 1; i >= 0; i-- {
			_ = a.closers[i]()
		}
	})
}

// Close releases everything Build opened without running the loop.
func (a *App) Close() { a.shutdown() }
