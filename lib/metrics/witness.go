package metrics

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type WitnessMetrics struct {
	Pending    metrics.Gauge
	Signatures metrics.Counter
	Quorums    metrics.Counter
}

func (w *WitnessMetrics) AddPending(delta int) {
	w.Pending.Add(float64(delta))
}

func (w *WitnessMetrics) AddSignature() {
	w.Signatures.Add(1)
}

func (w *WitnessMetrics) AddQuorum() {
	w.Quorums.Add(1)
}

func PromWitnessMetrics() *WitnessMetrics {
	return &WitnessMetrics{
		Pending: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: WitnessSubsystem,
			Name:      "pending",
			Help:      "Number of witness messages waiting for quorum.",
		}, []string{}),
		Signatures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: WitnessSubsystem,
			Name:      "signatures_total",
			Help:      "Number of accepted witness signatures.",
		}, []string{}),
		Quorums: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: WitnessSubsystem,
			Name:      "quorums_total",
			Help:      "Number of witness messages reaching quorum.",
		}, []string{}),
	}
}

func NopWitnessMetrics() *WitnessMetrics {
	return &WitnessMetrics{
		Pending:    discard.NewGauge(),
		Signatures: discard.NewCounter(),
		Quorums:    discard.NewCounter(),
	}
}
