package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"switchfacts/internal/extractor"
)

// watchCmd keeps the fact store in sync with the workspace
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Extract, then re-extract files as they change",
	Long: `Runs a full extraction, then watches the workspace and re-extracts
changed files after the configured debounce interval. When metrics are
enabled in the config, Prometheus metrics are served on metrics.listen at
/metrics. Stops on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	summary, err := rt.extractor.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "initial: %d extracted, %d unchanged, %d removed, %d failed\n",
		summary.Extracted, summary.Unchanged, summary.Removed, len(summary.Failed))

	if rt.cfg.Metrics.Enabled {
		srv := &http.Server{Addr: rt.cfg.Metrics.Listen, Handler: metricsMux(rt), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", zap.String("addr", rt.cfg.Metrics.Listen))
	}

	w, err := extractor.NewWatcher(rt.extractor, rt.cfg.GetWatchDebounce(), func(s *extractor.Summary) {
		fmt.Fprintf(out, "batch: %d extracted, %d unchanged, %d removed, %d failed\n",
			s.Extracted, s.Unchanged, s.Removed, len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(out, "  FAILED %s: %v\n", f.Path, f.Err)
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	fmt.Fprintf(out, "watching %s\n", rt.workspace)

	<-ctx.Done()
	w.Stop()
	logger.Info("watch stopped", zap.Int("batches", w.Stats().Batches))
	return nil
}

func metricsMux(rt *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
