package metrics

var (
	Consensus  = NopConsensusMetrics()
	Witness    = NopWitnessMetrics()
	Dispatcher = NopDispatcherMetrics()
	API        = NopAPIMetrics()
)
