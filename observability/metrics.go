// Package observability exposes the engine's data-quality counters.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatsync"

// Sources label where a message came from.
const (
	SourceRealtime = "realtime"
	SourceReplay   = "replay"
	SourceHistory  = "history"
	SourceOlder    = "older"
	SourceConfirm  = "confirm"
	SourceRestore  = "restore"
)

type Metrics struct {
	Admitted            *prometheus.CounterVec
	Duplicates          *prometheus.CounterVec
	Malformed           prometheus.Counter
	Unresolved          *prometheus.CounterVec
	InvariantViolations prometheus.Counter
	FetchFailures       *prometheus.CounterVec
	DroppedChanges      prometheus.Counter
	ChannelLength       *prometheus.GaugeVec
}

// NewMetrics builds the counters and registers them on reg.
// A nil registerer yields working, unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Admitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_admitted_total",
			Help:      "Messages admitted into a timeline, by source.",
		}, []string{"source"}),
		Duplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_duplicate_total",
			Help:      "Messages rejected by the identity index, by source.",
		}, []string{"source"}),
		Malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_malformed_total",
			Help:      "Real-time messages dropped because no conversation key could be resolved.",
		}),
		Unresolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_unresolved_total",
			Help:      "Mutation events targeting a message that is not hydrated locally, by kind.",
		}, []string{"kind"}),
		InvariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Duplicate ids that survived the identity index.",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed collaborator calls, by operation.",
		}, []string{"operation"}),
		DroppedChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_dropped_total",
			Help:      "Change notifications dropped because the fan-out buffer was full.",
		}),
		ChannelLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_length",
			Help:      "Sampled number of buffered items, by channel.",
		}, []string{"channel"}),
	}
}
