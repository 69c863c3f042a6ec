package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"veritas.app/backend/internal/api"
	"veritas.app/backend/internal/config"
	"veritas.app/backend/internal/core"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

The listen port comes from HTTP_PORT unless --port is given. The server
shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides HTTP_PORT)")
}

// responseSlack leaves room to encode and send the response once the
// slowest analyze request has finished.
const responseSlack = 15 * time.Second

// writeTimeout must outlast the slowest /analyze request, otherwise a
// computed result is dropped with the connection.
func writeTimeout(cfg config.Config) time.Duration {
	return core.AnalyzeBudget(cfg.LLMTimeout, cfg.SearchTimeout, cfg.SearchMaxAttempts) + responseSlack
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.AppConfig
	if servePort != "" {
		cfg.HTTPPort = servePort
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	apiHandler := api.NewAPIHandler(a.analysis, a.chats, logger)
	router := api.NewRouter(apiHandler, cfg.CORSOrigins, logger)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", serverAddr).Info("starting server, press Ctrl+C to quit")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		a.Close(context.Background(), logger)
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownErr := srv.Shutdown(ctx)
	a.Close(ctx, logger)
	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}

	logger.Info("server exited gracefully")
	return nil
}
