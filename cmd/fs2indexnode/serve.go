package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bs2609/fs2/internal/indexnode"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var (
		httpAddr      string
		refreshPool   int
		advertisePort int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexnode HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger().WithField("role", "indexnode")

			n := indexnode.New(indexnode.Config{
				RefreshPoolSize: refreshPool,
				AdvertisePort:   advertisePort,
			}, prometheus.DefaultRegisterer, log)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.Handle("/", n)

			srv := &http.Server{Addr: httpAddr, Handler: mux}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go n.Run(ctx)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			log.WithField("addr", httpAddr).Info("indexnode listening")
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", ":6771", "HTTP listen address")
	cmd.Flags().IntVar(&refreshPool, "refresh-workers", 8, "concurrent share refresh worker pool size")
	cmd.Flags().IntVar(&advertisePort, "advertise-port", 0, "HTTP port announced in UDP self-advertisements (0 disables)")
	return cmd
}
