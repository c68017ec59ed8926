package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"chat-sync/observability"
	"chat-sync/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"
)

type OrchestratorConfig struct {
	SinkTimeout      time.Duration
	SnapshotInterval time.Duration
	MetricInterval   time.Duration
}

// Orchestrator runs the session pipeline: real-time events into the engine,
// engine changes out to subscribers, periodic snapshots. It holds no
// conversation logic itself.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	engine     *Engine
	supervisor contract.ISupervisor
	events     <-chan event.DomainEvent
	snapshots  contract.SnapshotStore
	metrics    *observability.Metrics
	config     OrchestratorConfig
	extra      []contract.Worker
}

// NewOrchestrator wires engine to the inbound events. snapshots may be nil
// to run without persistence.
func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, engine *Engine,
	events <-chan event.DomainEvent, snapshots contract.SnapshotStore,
	metrics *observability.Metrics, config OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		log:        log,
		engine:     engine,
		supervisor: supervisor,
		events:     events,
		snapshots:  snapshots,
		metrics:    metrics,
		config:     config,
	}
}

// Add registers workers started with the pipeline, such as the real-time
// connection or the metrics server.
func (o *Orchestrator) Add(w ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extra = append(o.extra, w...)
}

// Start blocks until ctx is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	pipeline := o.preparePipeline()

	o.mu.Lock()
	o.supervisor.Add(pipeline...)
	o.supervisor.Add(o.extra...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) preparePipeline() []contract.Worker {
	res := []contract.Worker{
		workers.NewRealtimeWorker(o.log, o.events, o.engine),
		workers.NewChangeFanout(o.log, o.engine.Changes(), o.engine.Registry(), o.config.SinkTimeout),
	}
	if o.snapshots != nil {
		res = append(res, workers.NewSnapshotWorker(o.log, o.engine, o.snapshots, o.config.SnapshotInterval))
	}
	if o.metrics != nil && o.config.MetricInterval > 0 {
		res = append(res, workers.NewChannelCapacityWorker(o.log, []workers.NamedChannel{
			{Name: "events", Channel: o.events},
			{Name: "changes", Channel: o.engine.Changes()},
		}, o.metrics, o.config.MetricInterval))
	}
	return res
}

// Stop cancels every supervised worker; Start returns once they are done.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
