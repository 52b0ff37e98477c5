package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/moolen-fork/changeintel/internal/api"
	"github.com/moolen-fork/changeintel/internal/config"
	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/lifecycle"
	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/metrics"
	"github.com/moolen-fork/changeintel/internal/models"
	"github.com/moolen-fork/changeintel/internal/service"
	"github.com/moolen-fork/changeintel/internal/store"
	"github.com/moolen-fork/changeintel/internal/tracing"
)

var (
	configPath         string
	tracingEnabled     bool
	tracingEndpoint    string
	tracingTLSCAPath   string
	tracingTLSInsecure bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the change intelligence HTTP API and metrics server",
	Run:   runServer,
}

func init() {
	serverCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (optional; CHANGEINTEL_* env vars and defaults always apply)")
	serverCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing")
	serverCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for traces (e.g. otelcol:4317)")
	serverCmd.Flags().StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "Path to CA certificate for TLS verification (optional)")
	serverCmd.Flags().BoolVar(&tracingTLSInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification (insecure, testing only)")
}

func runServer(cmd *cobra.Command, args []string) {
	if err := setupLog(); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("server")

	cfg, err := config.Load(configPath)
	if err != nil {
		HandleError(err, "Configuration error")
	}
	logger.InfoWithFields("Starting changeintel", logging.Field("version", Version))

	manager := lifecycle.NewManager()

	tracingProvider, err := tracing.NewTracingProvider(tracing.Config{
		Enabled:     tracingEnabled,
		Endpoint:    tracingEndpoint,
		TLSCAPath:   tracingTLSCAPath,
		TLSInsecure: tracingTLSInsecure,
	})
	if err != nil {
		logger.WarnWithFields("failed to initialize tracing, continuing without it", logging.Field("error", err.Error()))
		tracingProvider = nil
	}
	if tracingProvider != nil {
		if err := manager.Register(tracingProvider); err != nil {
			HandleError(err, "Tracing registration error")
		}
	}

	registry := prometheus.NewRegistry()
	metricsImpl := metrics.New(registry)
	metricsServer := metrics.NewServer(cfg.MetricsAddr, registry)
	if err := manager.Register(metricsServer); err != nil {
		HandleError(err, "Metrics server registration error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventStore, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		HandleError(err, "Store initialization error")
	}
	defer eventStore.Close()

	serviceGraph := graph.New()
	svc := service.New(service.Config{
		Store:             eventStore,
		Graph:             serviceGraph,
		BucketMinutes:     cfg.BucketMinutes,
		Metrics:           metricsImpl,
		ImpactCacheConfig: graph.DefaultImpactCacheConfig(),
	})

	if cfg.GraphFilePath != "" {
		watcher, err := config.NewGraphWatcher(config.GraphWatcherConfig{
			FilePath: cfg.GraphFilePath,
		}, func(file *models.GraphImportFile) error {
			raw, err := json.Marshal(file)
			if err != nil {
				return err
			}
			if err := svc.GraphImport(raw, "config"); err != nil {
				return err
			}
			metricsImpl.GraphReloadsTotal.Inc()
			return nil
		})
		if err != nil {
			HandleError(err, "Graph watcher initialization error")
		}
		if err := watcher.Start(ctx); err != nil {
			metricsImpl.GraphReloadFailures.Inc()
			HandleError(err, "Graph watcher startup error")
		}
		defer watcher.Stop()
		logger.InfoWithFields("watching graph file for changes", logging.Field("path", cfg.GraphFilePath))
	}

	apiServer := api.New(cfg.HTTPAddr, svc)
	if err := manager.Register(apiServer); err != nil {
		HandleError(err, "API server registration error")
	}

	if err := manager.Start(ctx); err != nil {
		HandleError(err, "Startup error")
	}
	logger.Info("changeintel started, listening for events and API requests")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received, shutting down gracefully")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.ErrorWithErr("error during shutdown", err)
	}
	logger.Info("shutdown complete")
}
