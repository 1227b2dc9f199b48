package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/internal/suite"
)

var (
	flagListen   string
	flagCacheTTL time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the default comparison as OpenMetrics on /metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		models, err := suite.Default(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", cephtools.NewOpenMetricsHandler(ctx, models, float64(cfg.Period), flagCacheTTL))

		server := &http.Server{
			Addr:              flagListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Warn("failed to shutdown gracefully", "err", err)
			}
		}()

		slog.Info("starting reliability exporter", "listen", flagListen, "models", len(models))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start reliability exporter", "err", err)
			return err
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "0.0.0.0:2922", "addr to listen to")
	serveCmd.Flags().DurationVar(&flagCacheTTL, "cache.ttl", 5*time.Minute, "how long evaluations are served before being computed again")
}
