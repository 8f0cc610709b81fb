package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InitPrometheusMetrics replaces the nop metrics by the prometheus ones;
// call it before the engines start.
func InitPrometheusMetrics() {
	Version = PromVersion()
	Consensus = PromConsensusMetrics()
	Witness = PromWitnessMetrics()
	Dispatcher = PromDispatcherMetrics()
	API = PromAPIMetrics()
}

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
