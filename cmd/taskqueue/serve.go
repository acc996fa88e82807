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

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	taskqueue "github.com/Swind/go-taskqueue"
	"github.com/Swind/go-taskqueue/config"
	"github.com/Swind/go-taskqueue/core"
	promexp "github.com/Swind/go-taskqueue/observability/prometheus"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the queues named in a config file and export their metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := buildLogger(v)
			if err != nil {
				return err
			}

			cfg := config.Default()
			if path := v.GetString("config"); path != "" {
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			if addr := v.GetString("metrics-addr"); addr != "" {
				cfg.Metrics.Addr = addr
				cfg.Metrics.Enabled = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, v.GetString("config"), cfg)
		},
	}
	cmd.Flags().String("config", "", "YAML config file; watched for changes")
	cmd.Flags().String("metrics-addr", "", "override metrics.addr and enable the /metrics endpoint")
	return cmd
}

type server struct {
	logger   core.Logger
	registry *taskqueue.Registry
	poller   *promexp.SnapshotPoller
}

func serve(ctx context.Context, logger core.Logger, path string, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	promReg := prom.NewRegistry()
	exporter, err := promexp.NewMetricsExporter(cfg.Metrics.Namespace, promReg, promexp.ExporterOptions{})
	if err != nil {
		return fmt.Errorf("metrics exporter: %w", err)
	}
	poller, err := promexp.NewSnapshotPoller(cfg.Metrics.Namespace, promReg, cfg.Metrics.PollInterval)
	if err != nil {
		return fmt.Errorf("snapshot poller: %w", err)
	}

	s := &server{
		logger: logger,
		registry: taskqueue.NewRegistry(
			taskqueue.WithLogger(logger),
			taskqueue.WithMetrics(exporter),
		),
		poller: poller,
	}
	defer s.registry.Close()

	s.apply(cfg)
	poller.Start(ctx)
	defer poller.Stop()

	if path != "" {
		watchCtx, cancelWatch := context.WithCancel(ctx)
		watchDone := make(chan struct{})
		// runs before the registry is closed, so no reload lands after it
		defer func() {
			cancelWatch()
			<-watchDone
		}()

		w := config.NewWatcher(path, logger, s.apply)
		go func() {
			defer close(watchDone)
			if err := w.Run(watchCtx); err != nil {
				logger.Error("config watcher stopped", core.F("err", err))
			}
		}()
	}

	if !cfg.Metrics.Enabled {
		logger.Info("serving queues", core.F("queues", s.registry.Names()))
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", core.F("addr", cfg.Metrics.Addr), core.F("queues", s.registry.Names()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// apply reconciles queues with cfg and keeps the poller in step.
func (s *server) apply(cfg *config.Config) {
	added, removed := s.registry.Apply(cfg)
	for _, name := range removed {
		s.poller.RemoveQueue(name)
	}
	for _, name := range added {
		if q, ok := s.registry.Lookup(name); ok {
			s.poller.AddQueue(name, q)
		}
	}
	if len(added) > 0 || len(removed) > 0 {
		s.logger.Info("queues updated", core.F("added", added), core.F("removed", removed))
	}
}
