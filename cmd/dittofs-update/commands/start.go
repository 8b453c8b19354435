package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/internal/sysinfo"
	"github.com/marmos91/dittofs/pkg/config"
	updatemetrics "github.com/marmos91/dittofs/pkg/metrics/updateengine"
	"github.com/marmos91/dittofs/pkg/updateengine"
)

// uptimePersistInterval is how often the daemon folds accumulated uptime
// into the persisted accumulator, so a crash loses at most this much.
const uptimePersistInterval = time.Minute

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the update-engine host process",
	Long: `Start the long-running update-engine host process.

On startup this runs the boot reconciliation pass (reboot detection,
failed-boot reporting, and the booted-into-update marker check), then
keeps the persisted uptime accounting converging and, when enabled,
serves Prometheus metrics.

This process offers no interface for a download/apply pipeline to feed it
response or progress events; it performs its startup duties, persists
uptime, and serves metrics until stopped.

Examples:
  # Start with default config location
  dittofs-update start

  # Start with custom config
  dittofs-update start --config /etc/dittofs/update.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	store, powerwash, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	var sink updateengine.MetricsSink
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		sink = updatemetrics.NewMetrics(registry)
	}

	system := sysinfo.New(cfg.UpdateEngine.AllowHTTPDownloads)
	state := updateengine.NewDriver(store, powerwash, system, realClock{}, sink, cfg.UpdateEngine.ToEngineConfig())

	logger.Info("update engine started",
		"version", Version,
		"running_os_version", system.RunningOSVersion(),
		"response_signature", state.ResponseSignature(),
		"num_reboots", state.NumReboots())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(uptimePersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			state.CalculateUpdateDurationUptime()
		case <-ctx.Done():
			logger.Info("shutting down")
			state.CalculateUpdateDurationUptime()

			if metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("metrics server shutdown failed", "error", err)
				}
			}
			return nil
		}
	}
}
