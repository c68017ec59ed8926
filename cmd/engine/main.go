package main

import (
	"chat-sync/auth"
	"chat-sync/internal"
	"chat-sync/observability"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/sink"
	"chat-sync/transport/rest"
	"chat-sync/transport/ws"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Exit codes for the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Engine terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run returns instead of exiting so deferred cleanup always happens.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if err := auth.CheckSession(config.AuthToken, config.LocalUserID, time.Now()); err != nil {
		return exitConfig, err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	snapshots := repositories.NewSnapshotRepository(db, log)

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	// 4. Transports & Engine
	api := rest.NewClient(log, config.APIURL, config.AuthToken, &http.Client{Timeout: config.RequestTimeout})
	realtime := ws.NewClient(log, ws.Config{
		URL:         config.RealtimeURL,
		Token:       config.AuthToken,
		LocalUserID: config.LocalUserID,
		AckInterval: config.AckInterval,
		BufferSize:  config.BufferSize,
	}, metrics)

	engine := runtime.NewEngine(log, config.LocalUserID, runtime.Dependencies{
		Fetcher: api,
		Lister:  api,
		Acker:   realtime,
		Sender:  api,
	}, metrics, config.BufferSize)

	if err := restore(log, engine, snapshots, config.LocalUserID); err != nil {
		return exitRuntime, err
	}

	engine.SubscribeAll(sink.NewLogSink(log))
	engine.SubscribeAll(sink.NewBadge(engine, func(total int) {
		log.Info("Unread messages", "total", total)
	}))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hydrateCtx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	if err := engine.HydrateConversations(hydrateCtx); err != nil {
		log.Warn("Conversation list unavailable, starting without it", "error", err)
	}
	cancel()

	// 6. Pipeline
	orchestrator := runtime.NewOrchestrator(log,
		workers.NewSupervisor(log, config.RestartInterval),
		engine, realtime.Events(), snapshots, metrics,
		runtime.OrchestratorConfig{
			SinkTimeout:      config.SinkTimeout,
			SnapshotInterval: config.SnapshotInterval,
			MetricInterval:   config.MetricInterval,
		})
	orchestrator.Add(realtime)
	if config.MetricsPort > 0 {
		orchestrator.Add(observability.NewMetricsServer(log, config.MetricsPort, registry))
	}

	// 7. Run until a signal arrives; the snapshot worker saves on the way out
	if err := orchestrator.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator failed: %w", err)
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

// restore reloads the last snapshot of the same user. A snapshot left by
// another user is discarded.
func restore(log *slog.Logger, engine *runtime.Engine, snapshots repositories.ISnapshotRepository, localUserID string) error {
	snapshot, found, err := snapshots.Load()
	if err != nil {
		return fmt.Errorf("snapshot loading failed: %w", err)
	}
	if !found {
		return nil
	}
	if snapshot.LocalUserID != localUserID {
		log.Info("Discarding snapshot of another user", "owner", snapshot.LocalUserID)
		return snapshots.Clear()
	}
	if err := engine.Restore(snapshot); err != nil {
		return fmt.Errorf("snapshot restore failed: %w", err)
	}
	log.Info(fmt.Sprintf("%d conversations restored", len(snapshot.Conversations)))
	return nil
}
