package metrics

import (
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type APIMetrics struct {
	InFlight        metrics.Gauge
	Requests        metrics.Counter
	RequestErrors   metrics.Counter
	DurationSeconds metrics.Histogram
}

func (a *APIMetrics) Begin() {
	a.InFlight.Add(1)
}

// Done records the request of route, started at begin. Responses with
// status code 400 and over are counted as errors.
func (a *APIMetrics) Done(route, method string, status int, begin time.Time) {
	a.InFlight.Add(-1)

	labels := []string{"route", route, "method", method, "status", strconv.Itoa(status)}
	a.Requests.With(labels...).Add(1)
	if status >= 400 {
		a.RequestErrors.With(labels...).Add(1)
	}
	a.DurationSeconds.With(labels...).Observe(time.Since(begin).Seconds())
}

func PromAPIMetrics() *APIMetrics {
	labels := []string{"route", "method", "status"}

	return &APIMetrics{
		InFlight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: APISubsystem,
			Name:      "in_flight",
			Help:      "Number of requests being served.",
		}, []string{}),
		Requests: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: APISubsystem,
			Name:      "requests_total",
			Help:      "Number of served requests.",
		}, labels),
		RequestErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: APISubsystem,
			Name:      "request_errors_total",
			Help:      "Number of requests answered with an error status.",
		}, labels),
		DurationSeconds: prometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: Namespace,
			Subsystem: APISubsystem,
			Name:      "request_duration_seconds",
			Help:      "Time to serve a request.",
		}, labels),
	}
}

func NopAPIMetrics() *APIMetrics {
	return &APIMetrics{
		InFlight:        discard.NewGauge(),
		Requests:        discard.NewCounter(),
		RequestErrors:   discard.NewCounter(),
		DurationSeconds: discard.NewHistogram(),
	}
}
