package metrics

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type ConsensusMetrics struct {
	Instances     metrics.Counter
	Decided       metrics.Counter
	Responses     metrics.Counter
	LateResponses metrics.Counter
}

func (c *ConsensusMetrics) AddInstance() {
	c.Instances.Add(1)
}

// AddDecided counts the instances reaching the terminal phase.
func (c *ConsensusMetrics) AddDecided(phase string) {
	c.Decided.With("phase", phase).Add(1)
}

func (c *ConsensusMetrics) AddResponse(state string) {
	c.Responses.With("state", state).Add(1)
}

func (c *ConsensusMetrics) AddLateResponse() {
	c.LateResponses.Add(1)
}

func PromConsensusMetrics() *ConsensusMetrics {
	return &ConsensusMetrics{
		Instances: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: ConsensusSubsystem,
			Name:      "instances_total",
			Help:      "Number of elect instances.",
		}, []string{}),
		Decided: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: ConsensusSubsystem,
			Name:      "decided_total",
			Help:      "Number of decided elect instances.",
		}, []string{"phase"}),
		Responses: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: ConsensusSubsystem,
			Name:      "responses_total",
			Help:      "Number of recorded elect accept responses.",
		}, []string{"state"}),
		LateResponses: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: ConsensusSubsystem,
			Name:      "late_responses_total",
			Help:      "Number of responses received after the decision.",
		}, []string{}),
	}
}

func NopConsensusMetrics() *ConsensusMetrics {
	return &ConsensusMetrics{
		Instances:     discard.NewCounter(),
		Decided:       discard.NewCounter(),
		Responses:     discard.NewCounter(),
		LateResponses: discard.NewCounter(),
	}
}
