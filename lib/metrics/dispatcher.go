package metrics

import (
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type DispatcherMetrics struct {
	Messages        metrics.Counter
	Published       metrics.Counter
	DurationSeconds metrics.Histogram
}

func (d *DispatcherMetrics) AddMessage(object, action, result string) {
	d.Messages.With("object", object, "action", action, "result", result).Add(1)
}

func (d *DispatcherMetrics) AddPublished(object, action string) {
	d.Published.With("object", object, "action", action).Add(1)
}

func (d *DispatcherMetrics) ObserveDurationSeconds(begin time.Time) {
	d.DurationSeconds.Observe(time.Since(begin).Seconds())
}

func PromDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{
		Messages: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DispatcherSubsystem,
			Name:      "messages_total",
			Help:      "Number of incoming messages.",
		}, []string{"object", "action", "result"}),
		Published: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DispatcherSubsystem,
			Name:      "published_total",
			Help:      "Number of published messages.",
		}, []string{"object", "action"}),
		DurationSeconds: prometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: Namespace,
			Subsystem: DispatcherSubsystem,
			Name:      "duration_seconds",
			Help:      "Time handling one incoming message.",
		}, []string{}),
	}
}

func NopDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{
		Messages:        discard.NewCounter(),
		Published:       discard.NewCounter(),
		DurationSeconds: discard.NewHistogram(),
	}
}
