package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/pet-health-tracker/internal/async"
	"github.com/joseph-ayodele/pet-health-tracker/internal/ingest"
	"github.com/joseph-ayodele/pet-health-tracker/internal/realtime"
	"github.com/joseph-ayodele/pet-health-tracker/internal/server"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, gRPC health, analysis queue, drop-folder watcher and change feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg, logger, true)
		if err != nil {
			return err
		}
		defer a.close()

		queue := async.NewAnalysisQueue(a.reports, logger,
			async.WithWorkers(cfg.Analysis.Workers),
			async.WithQueueSize(cfg.Analysis.QueueSize),
			async.WithProcessTimeout(cfg.Analysis.Timeout+30*time.Second),
			async.WithRateLimit(cfg.Analysis.RatePerMinute),
			async.WithMetrics(a.metrics),
		)
		a.reports.AttachQueue(queue)

		dbHealth := func(ctx context.Context) error { return a.db.HealthCheck(ctx, 2*time.Second) }
		h := server.NewHandler(a.reports, logger,
			server.WithExporter(a.exporter),
			server.WithMetrics(a.metrics),
			server.WithHealthCheck(dbHealth),
		)
		httpSrv := &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           h.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		grpcSrv, healthSrv := server.NewHealthServer()

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("http.listening", "addr", cfg.Server.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "http listen")
			}
			return nil
		})

		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
			if err != nil {
				return eris.Wrap(err, "grpc listen")
			}
			logger.Info("grpc.listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return eris.Wrap(err, "grpc serve")
			}
			return nil
		})

		g.Go(func() error {
			server.WatchHealth(gctx, healthSrv, dbHealth, 10*time.Second, logger)
			return nil
		})

		if cfg.Ingest.DropDir != "" {
			drop := ingest.NewDropFolder(cfg.Ingest.DropDir, a.reports, a.store, logger)
			g.Go(func() error { return drop.Run(gctx, cfg.Ingest.Debounce) })
		}

		if cfg.Realtime.Enabled && a.db.Pool != nil {
			l := realtime.NewListener(a.db.Pool, cfg.Realtime.Channel, logger)
			g.Go(func() error { return l.Run(gctx, a.reports.HandleRemoteEvent) })
		}

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()

			if err := httpSrv.Shutdown(sctx); err != nil {
				logger.Warn("http.shutdown_failed", "error", err)
			}
			grpcSrv.GracefulStop()
			if err := queue.Shutdown(sctx); err != nil {
				logger.Warn("analysis.queue.shutdown_failed", "error", err)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&httpAddrFlag, "http-addr", "", "HTTP listen address (default from config)")
	serveCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if httpAddrFlag != "" {
			cfg.Server.HTTPAddr = httpAddrFlag
		}
	}
	rootCmd.AddCommand(serveCmd)
}

var httpAddrFlag string
