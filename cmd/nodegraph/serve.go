package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nodegraph/internal/handler"
	"nodegraph/internal/loader"
	"nodegraph/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting nodegraph server")
	a.logger.Debug("effective config", zap.String("summary", a.cfg.Summary()))

	var wg sync.WaitGroup
	if a.cfg.Seed.Path != "" {
		if err := a.seed(ctx, &wg); err != nil {
			return err
		}
	}

	router := handler.NewRouter(
		handler.NewNodeHandler(a.svc, a.logger),
		handler.RouterConfig{
			CORSOrigins:    a.cfg.Server.CORSOrigins,
			RequestTimeout: a.cfg.Server.WriteTimeout.Duration(),
		},
		a.metrics,
		a.logger,
	)

	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  a.cfg.Server.IdleTimeout.Duration(),
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.cfg.Server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()

	a.logger.Info("server stopped")
	return nil
}

// seed creates the schema, imports the seed file and, when configured,
// re-imports it on change until ctx ends
func (a *app) seed(ctx context.Context, wg *sync.WaitGroup) error {
	if err := a.svc.InitDB(ctx); err != nil {
		return err
	}

	l := loader.New(a.svc, a.logger)
	if _, err := l.LoadFile(ctx, a.cfg.Seed.Path); err != nil {
		return err
	}

	if !a.cfg.Seed.Watch {
		return nil
	}

	reload := func() {
		a.whileOpen(func() { l.Reload(ctx, a.cfg.Seed.Path) })
	}
	w := watcher.New(a.cfg.Seed.Path, reload, a.logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("seed watcher stopped", zap.Error(err))
		}
	}()
	return nil
}
