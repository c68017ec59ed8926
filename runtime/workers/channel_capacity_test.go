package workers

import (
	"chat-sync/observability"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestChannelCapacityWorker_Sample(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics(nil)

	changes := make(chan int, 4)
	changes <- 1
	changes <- 2

	worker := NewChannelCapacityWorker(log, []NamedChannel{
		{Name: "changes", Channel: changes},
		{Name: "not-a-channel", Channel: 42},
	}, metrics, time.Second)

	// When
	worker.Sample()

	// Then
	req.Equal(2.0, testutil.ToFloat64(metrics.ChannelLength.WithLabelValues("changes")))
}
