package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/api"
	"github.com/JakeFAU/distro-catalog/internal/schedule"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the catalog over HTTP",
		Long: `Starts the JSON API. When the schedule is enabled the cache is warmed
in the background on the configured cron spec.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			listenPort := appInstance.Config().Server.Port
			if port > 0 {
				listenPort = port
			}
			return runServe(cmd.Context(), appInstance, listenPort)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

func runServe(ctx context.Context, appInstance App, port int) error {
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	server := api.NewServer(appInstance.Catalog(), api.Options{
		RequestTimeout: cfg.Server.RequestTimeout(),
		BaseContext:    ctx,
	}, logger.Named("api"))

	if cfg.Schedule.Enabled {
		sched, err := schedule.New(schedule.Config{
			Spec:        cfg.Schedule.Refresh,
			WarmOnStart: cfg.Schedule.WarmOnStart,
		}, appInstance.Catalog(), logger.Named("schedule"))
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return serve(ctx, listener, server, cfg.Server.ShutdownTimeout(), logger)
}

// serve runs the HTTP server on listener until ctx is canceled, then drains
// in-flight requests and background refreshes.
func serve(ctx context.Context, listener net.Listener, server *api.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	server.Wait()
	return nil
}
