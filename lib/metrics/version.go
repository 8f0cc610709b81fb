package metrics

import (
	"runtime"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/laonet/laocoord/lib/version"
)

var Version metrics.Gauge = discard.NewGauge()

func PromVersion() metrics.Gauge {
	return prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build of the running node; the value is always 1.",
	}, []string{"node", "version", "git_commit", "go_version"})
}

// SetVersion publishes the build of the node identified by publicKey.
func SetVersion(publicKey string) {
	Version.With(
		"node", publicKey,
		"version", version.Version,
		"git_commit", version.GitCommit,
		"go_version", runtime.Version(),
	).Set(1)
}
