package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"provflow/infrastructure/repositories"
	"provflow/interfaces/web"
	"provflow/interfaces/web/handlers"
	"provflow/interfaces/web/presenters"
	"provflow/logging"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run report browser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, defaults to HTTP_ADDR")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	db, err := initializeDatabase(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	runHandlers := handlers.NewRunHandlers(
		repositories.NewSQLiteRunRepository(db),
		presenters.NewRunPresenter(),
		db,
		a.cfg.ReportDir,
	)

	requestLog, closeLog := openHTTPLog(a.cfg.HTTPLogPath, a.logger)
	defer closeLog()

	router := web.NewRouter(runHandlers, web.RouterOptions{RequestLog: requestLog})
	return startServer(parent, router, a.cfg.HTTPAddr, a.logger)
}

// openHTTPLog opens the request log for appending. A missing path or an unopenable file
// disables request logging.
func openHTTPLog(path string, logger *logging.Logger) (io.Writer, func()) {
	if path == "" {
		return nil, func() {}
	}
	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Error("Failed to open HTTP log file", "error", err, "path", path)
		return nil, func() {}
	}
	logger.Info("HTTP request logging enabled", "path", path)
	return logFile, func() { logFile.Close() }
}

func startServer(parent context.Context, handler http.Handler, addr string, logger *logging.Logger) error {
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
