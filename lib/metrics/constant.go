package metrics

const (
	Namespace           = "laocoord"
	ConsensusSubsystem  = "consensus"
	WitnessSubsystem    = "witness"
	DispatcherSubsystem = "dispatcher"
	APISubsystem        = "api"
)

const (
	DispatcherResultHandled   = "handled"
	DispatcherResultDuplicate = "duplicate"
	DispatcherResultDropped   = "dropped"
	DispatcherResultParked    = "parked"
)
