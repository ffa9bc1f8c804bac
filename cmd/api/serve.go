package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"sales-call-insights-go/internal/blob"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/server"
)

var (
	servePort    int
	drainTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recordings API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		deps := server.Deps{
			Lifecycle:      env.Runner,
			Records:        env.Store,
			Knowledge:      env.Store,
			Uploads:        scratch.Dir(cfg.Scratch.Dir),
			MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}
		if local, ok := env.Blobs.(*blob.Local); ok {
			deps.Blobs = local.Handler()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		addr := fmt.Sprintf(":%d", port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      server.New(deps).Handler(),
			ReadTimeout:  15 * time.Minute,
			WriteTimeout: 15 * time.Minute,
			IdleTimeout:  120 * time.Second,
		}

		log := logger.New()
		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return eris.Wrap(err, "server listen")
			}
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
		if err := env.Runner.Wait(shutdownCtx); err != nil {
			log.WithError(err).Warn("analyses still running at exit")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 2*time.Minute, "how long to wait for running analyses on shutdown")
	rootCmd.AddCommand(serveCmd)
}
