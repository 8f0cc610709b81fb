package witness

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/laonet/laocoord/lib/errors"
)

// Policy decides whether the signatures collected from the witnesses of an
// organization are enough.
type Policy interface {
	Reached(signatures, witnesses int) bool
	String() string
}

// MajorityPolicy needs the signatures of more than half of the witnesses,
// `ceil((witnesses+1)/2)`.
type MajorityPolicy struct{}

func (MajorityPolicy) Threshold(witnesses int) int {
	return (witnesses + 2) / 2
}

func (p MajorityPolicy) Reached(signatures, witnesses int) bool {
	return signatures >= p.Threshold(witnesses)
}

func (MajorityPolicy) String() string {
	return "majority"
}

// PercentagePolicy needs the signatures of Percent percent of the
// witnesses, at least one.
type PercentagePolicy struct {
	Percent int
}

func NewPercentagePolicy(percent int) (PercentagePolicy, error) {
	if percent <= 0 || percent > 100 {
		return PercentagePolicy{}, errors.InvalidThresholdPolicy.Clone().SetData("percent", percent)
	}

	return PercentagePolicy{Percent: percent}, nil
}

func (p PercentagePolicy) Threshold(witnesses int) int {
	v := float64(witnesses) * (float64(p.Percent) / float64(100))
	threshold := int(math.Ceil(v))

	if threshold > 0 {
		return threshold
	}

	return 1
}

func (p PercentagePolicy) Reached(signatures, witnesses int) bool {
	return signatures >= p.Threshold(witnesses)
}

func (p PercentagePolicy) String() string {
	return fmt.Sprintf("%d%%", p.Percent)
}

// ConstantPolicy needs N signatures, whatever the number of witnesses.
type ConstantPolicy struct {
	N int
}

func (p ConstantPolicy) Reached(signatures, _ int) bool {
	return signatures >= p.N
}

func (p ConstantPolicy) String() string {
	return strconv.Itoa(p.N)
}

// ParsePolicy reads the threshold setting: `majority`, a percentage like
// `67%` or a constant like `3`.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)

	switch {
	case len(s) < 1 || s == "majority":
		return MajorityPolicy{}, nil
	case strings.HasSuffix(s, "%"):
		percent, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
		if err != nil {
			return nil, errors.InvalidThresholdPolicy.Clone().SetData("policy", s)
		}
		return NewPercentagePolicy(percent)
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return nil, errors.InvalidThresholdPolicy.Clone().SetData("policy", s)
	}

	return ConstantPolicy{N: n}, nil
}
