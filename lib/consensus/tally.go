package consensus

// decide returns the phase reached by the counted answers. known acceptors
// are fixed at the creation of the instance; pending answers count for
// neither side.
func decide(known, accepted, rejected int) (Phase, bool) {
	if known < 1 {
		return "", false
	}

	switch {
	case accepted > known/2:
		return PhaseAccepted, true
	case rejected >= known/2+1:
		return PhaseFailed, true
	}

	return "", false
}
