// Command gatekeeperd runs the authorization gate as a reverse proxy in
// front of an upstream service. The authentication layer in front of it is
// trusted to set the subject headers.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to gatekeeperd.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("gatekeeperd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", slog.String("error", err.Error()))
		}
	}()

	eng, err := newEngine(ctx, cfg, s, logger)
	if err != nil {
		return err
	}
	proxy, err := newProxy(cfg.Upstream, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(cfg, eng, proxy, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gatekeeperd listening",
			slog.String("addr", cfg.Listen),
			slog.String("upstream", cfg.Upstream),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return eng.Stop(shutdownCtx)
	})
	if cfg.Audit.Enabled && cfg.Audit.Retention > 0 && cfg.Audit.PurgeInterval > 0 {
		g.Go(func() error {
			return purgeLoop(gctx, s, cfg.Audit.Retention, cfg.Audit.PurgeInterval, logger)
		})
	}

	return g.Wait()
}
