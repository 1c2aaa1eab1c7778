/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

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

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/internal/webhook"
	"github.com/josephgoksu/paperboy/store"
)

// serveCmd runs the missed-call webhook server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the missed-call webhook",
	Long: `Serve starts the HTTP endpoint that accepts missed-call notifications
(e.g. from an IFTTT applet) and records them as high-priority tasks.
The pipeline run loop picks them up for printing like any other task.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		st, err := store.NewSQLiteStore(cfg.Data.File)
		if err != nil {
			return fmt.Errorf("open task store: %w", err)
		}
		defer func() { _ = st.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := &http.Server{
			Addr:              cfg.Webhook.Addr,
			Handler:           webhook.NewServer(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("webhook listening", "addr", cfg.Webhook.Addr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down webhook server")
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
