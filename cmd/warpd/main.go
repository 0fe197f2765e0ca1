// cmd/warpd/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"sync/atomic"
	"syscall"
	"time"

	"rasterwarp/internal/config"
	"rasterwarp/internal/dispatch"
	"rasterwarp/internal/infra/etcd"
	"rasterwarp/internal/infra/shell"
	"rasterwarp/internal/loop"
	"rasterwarp/internal/metrics"
	"rasterwarp/internal/tracing"
	"rasterwarp/internal/warp"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.Init("rasterwarp", os.Stderr)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	// 2. Load configuration; usage: warpd [config-file [target-projection]]
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.TargetProjection == "" && len(os.Args) > 2 {
		cfg.TargetProjection = os.Args[2]
	}
	projectionOptions, err := cfg.ProjectionOptions()
	if err != nil {
		log.Fatalf("Failed to resolve target projection: %v", err)
	}

	nodeID := uuid.New().String()
	logger.Info("rasterwarp started",
		"node_id", nodeID,
		"target_projection", cfg.TargetProjection,
		"num_workers", cfg.NumWorkers)

	// 3. Signal handler: sets the shutdown flag and nothing else; the loop
	// polls it and drains outstanding work before exiting.
	shutdownRequested := &atomic.Bool{}
	watchSignals(shutdownRequested, logger)

	// 4. Init bus client
	etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		log.Fatalf("Failed to create etcd client: %v", err)
	}
	defer etcdClient.Close()

	// 5. Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.HttpListenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 6. Instantiate components
	runner := shell.NewCommandRunner(logger)
	step := warp.NewStep(runner, cfg.WarpTool, cfg.OverviewTool, logger)
	dispatcher := dispatch.New(step, cfg.NumWorkers, cfg.QueueSize, logger)
	publisher := etcd.NewPublisher(etcdClient, path.Join(cfg.BusPrefix, "published"), logger)

	subscribePrefix := path.Join(cfg.BusPrefix, "events", cfg.Subscriber.Topic)

	// 7. Run the warper loop, recycling the subscription on idle timeouts
	// until termination is requested. The loop itself lives as long as the
	// dispatcher so its count of in-flight work carries across sessions.
	warperLoop := loop.New(publisher, dispatcher, cfg, projectionOptions,
		shutdownRequested, logger)

	ctx := context.Background()
	for {
		logger.Debug("starting warper loop")
		sub := etcd.NewSubscriber(etcdClient, subscribePrefix, cfg.PollInterval, logger)

		outcome, err := warperLoop.Run(ctx, sub)
		if closeErr := sub.Close(); closeErr != nil {
			logger.Error("failed to close subscriber", "error", closeErr)
		}
		if err != nil {
			logger.Error("warper loop failed", "error", err)
		}
		if outcome == loop.Terminate {
			break
		}

		metrics.SubscriptionRestartsTotal.Inc()
		if err != nil {
			// Back off before rebuilding a failed subscription.
			time.Sleep(5 * time.Second)
		}
	}

	// 8. Let in-flight tool invocations finish, then stop serving metrics.
	dispatcher.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	logger.Info("rasterwarp stopped")
}

func watchSignals(flag *atomic.Bool, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		flag.Store(true)
		logger.Info("caught termination signal, stop accepting new work", "signal", sig.String())
	}()
}
