package consensus

// AcceptPolicy decides the answer of the local node to a new election.
// others holds the other instances of the same key, as snapshots.
type AcceptPolicy interface {
	Accept(laoID string, instance ElectInstance, others []ElectInstance) bool
}

type AcceptPolicyFunc func(string, ElectInstance, []ElectInstance) bool

func (f AcceptPolicyFunc) Accept(laoID string, instance ElectInstance, others []ElectInstance) bool {
	return f(laoID, instance, others)
}

// DefaultAcceptPolicy rejects an election when a different value was already
// accepted for the same key.
var DefaultAcceptPolicy AcceptPolicy = AcceptPolicyFunc(
	func(_ string, instance ElectInstance, others []ElectInstance) bool {
		for _, o := range others {
			if o.InstanceID == instance.InstanceID {
				continue
			}
			if o.Phase == PhaseAccepted {
				return false
			}
		}

		return true
	},
)

// AcceptAllPolicy accepts every election.
var AcceptAllPolicy AcceptPolicy = AcceptPolicyFunc(
	func(string, ElectInstance, []ElectInstance) bool { return true },
)
