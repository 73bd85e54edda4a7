package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ttscore/internal/config"
	"github.com/example/ttscore/internal/core"
	"github.com/example/ttscore/internal/metrics"
	"github.com/example/ttscore/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ttscore HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			var collector *metrics.Collector
			if cfg.Metrics.Enabled {
				collector = metrics.NewCollector(prometheus.DefaultRegisterer)
			}

			svc, closeEngine, err := core.Build(cfg, collector)
			if err != nil {
				return err
			}
			defer closeEngine()

			srv := server.New(cfg, svc, server.NewVoiceLister(svc.Voices(), nil), collector).
				WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	defaults := config.DefaultConfig()
	config.RegisterFlags(cmd.Flags(), defaults)

	return cmd
}
