// Package sink delivers output items and error records to their destination.
package sink

import (
	"context"

	"github.com/Sternrassler/fred-series-harvester/pkg/output"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventKindResultItem tags pushes billed per item.
const EventKindResultItem = "result-item"

// Sink is the outbound interface of a harvest run. Pushes are append-only
// and arrive in output order.
type Sink interface {
	// PushItems writes one batch. eventKind is empty for flat-rate billing.
	PushItems(ctx context.Context, items []output.Item, eventKind string) error

	// PushError writes the single error record of a failed run.
	PushError(ctx context.Context, record output.ErrorRecord) error

	// Close flushes and releases the destination.
	Close() error
}

// Envelope wraps a record for destinations that mix runs.
type Envelope struct {
	RunID     string              `json:"runId,omitempty"`
	EventKind string              `json:"eventKind,omitempty"`
	Item      *output.Item        `json:"item,omitempty"`
	Error     *output.ErrorRecord `json:"error,omitempty"`
}

var fredSinkPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fred_sink_push_total",
	Help: "Sink push operations by sink and status",
}, []string{"sink", "status"})

func observePush(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	fredSinkPushTotal.WithLabelValues(sink, status).Inc()
}
