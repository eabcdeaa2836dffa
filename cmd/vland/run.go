package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/vland/pkg/audit"
	"github.com/newtron-network/vland/pkg/health"
	"github.com/newtron-network/vland/pkg/hwsink"
	"github.com/newtron-network/vland/pkg/metrics"
	"github.com/newtron-network/vland/pkg/reconcile"
	"github.com/newtron-network/vland/pkg/util"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the VLAN subsystem",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func run(ctx context.Context) error {
	log := util.WithComponent("vland")

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, closeSink, err := openSink(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeSink()
	dispatcher := hwsink.NewDispatcher(sink, hwsink.DispatcherOptions{MaxAttempts: cfg.Sink.MaxAttempts})

	opts := reconcile.Options{
		Device:     cfg.DeviceName(),
		Programmer: dispatcher,
	}
	if cfg.Audit.Path != "" {
		auditor, err := audit.NewFileLogger(cfg.Audit.Path, audit.RotationConfig{
			MaxSize:    cfg.Audit.MaxSizeMB * 1024 * 1024,
			MaxBackups: cfg.Audit.MaxBackups,
		})
		if err != nil {
			return err
		}
		defer auditor.Close()
		opts.Auditor = auditor
	}

	metrics.Register()
	r := reconcile.New(store, opts)
	if err := r.Start(ctx); err != nil {
		return err
	}
	if rng, ok := cfg.InternalRange(); ok && rng != r.InternalRange() {
		if err := r.ConfigureInternalRange(ctx, reconcile.SystemUser, rng.Start, rng.End, rng.Policy); err != nil {
			log.Warnf("internal range from settings: %v", err)
		}
	}
	log.Infof("store=%s sink=%s device=%s", cfg.Store, sink.Name(), opts.Device)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return r.Run(ctx)
	})
	if cfg.MetricsAddr != "" {
		target := &health.Target{Store: store, Sink: dispatcher, Pool: r}
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: debugMux(r, opts.Device, target)}
		g.Go(func() error {
			log.Infof("serving metrics on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("stopped")
	return err
}

// debugMux serves /metrics, /healthz and /debug/dump.
func debugMux(r *reconcile.Reconciler, device string, target *health.Target) *http.ServeMux {
	checker := health.NewChecker()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		report := checker.Run(req.Context(), device, target)
		w.Header().Set("Content-Type", "application/json")
		if report.Overall == health.StatusCritical {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})
	mux.HandleFunc("/debug/dump", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		r.Dump(w)
	})
	return mux
}
