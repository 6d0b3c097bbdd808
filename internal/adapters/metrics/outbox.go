package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PendingCounter reports unpublished outbox events per event type
type PendingCounter interface {
	PendingByType(ctx context.Context) (map[string]int, error)
}

// OutboxBacklog is a collector that reads the outbox backlog at scrape time
type OutboxBacklog struct {
	source  PendingCounter
	timeout time.Duration
	logger  *slog.Logger
	desc    *prometheus.Desc
}

// NewOutboxBacklog creates the market_outbox_pending_events collector
func NewOutboxBacklog(source PendingCounter, timeout time.Duration, logger *slog.Logger) *OutboxBacklog {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxBacklog{
		source:  source,
		timeout: timeout,
		logger:  logger,
		desc: prometheus.NewDesc(
			"market_outbox_pending_events",
			"Outbox events waiting for the relay, by event type",
			[]string{"event_type"}, nil,
		),
	}
}

func (b *OutboxBacklog) Describe(ch chan<- *prometheus.Desc) {
	ch <- b.desc
}

// Collect skips the sample when the count query fails
func (b *OutboxBacklog) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	counts, err := b.source.PendingByType(ctx)
	if err != nil {
		b.logger.Warn("Failed to count pending outbox events", "error", err)
		return
	}
	for eventType, n := range counts {
		ch <- prometheus.MustNewConstMetric(b.desc, prometheus.GaugeValue, float64(n), eventType)
	}
}
