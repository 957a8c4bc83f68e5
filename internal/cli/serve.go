package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"socialgraph/internal/mcpserver"
)

func newServeCmd(a *app) *cobra.Command {
	var ingestOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the social graph tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			svc, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(context.Background())

			src, closeSrc, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer closeSrc()

			if ingestOnStart {
				ds, err := src.Load(ctx)
				if err != nil {
					return err
				}
				if _, err := svc.Ingest(ctx, ds.People, ds.Connections); err != nil {
					a.log.Warn("initial ingest failed", zap.Error(err))
				}
			}

			srv, err := mcpserver.NewServer(mcpserver.Config{
				ServerName:      a.cfg.Server.Name,
				ServerVersion:   a.cfg.Server.Version,
				RefreshInterval: a.cfg.Server.RefreshInterval,
			}, svc, src, a.log)
			if err != nil {
				return err
			}
			defer srv.Close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// The client closing stdin ends the session and the process.
				defer cancel()
				err := srv.Start(gctx)
				if gctx.Err() != nil {
					return nil
				}
				return err
			})
			if addr := a.cfg.Server.MetricsAddr; addr != "" {
				serveMetrics(gctx, g, addr, a.log)
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringP("metrics-addr", "m", "", "address for the Prometheus /metrics endpoint, e.g. :9090")
	cmd.Flags().BoolVar(&ingestOnStart, "ingest-on-start", false, "ingest the dataset once before serving")
	_ = a.v.BindPFlag("server.metrics_addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpSrv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
}
