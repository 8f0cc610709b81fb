package lao

import (
	"github.com/laonet/laocoord/lib/common/keypair"
)

// NewTestOrganization makes an organization with a random organizer and
// witnessCount random witnesses; it returns their signers, the organizer
// first.
func NewTestOrganization(name string, witnessCount int) (Organization, []*keypair.KeypairSigner) {
	organizer := keypair.RandomSigner()
	signers := []*keypair.KeypairSigner{organizer}

	var witnesses []string
	for i := 0; i < witnessCount; i++ {
		w := keypair.RandomSigner()
		signers = append(signers, w)
		witnesses = append(witnesses, w.PublicKey())
	}

	o, err := NewOrganization(name, organizer.PublicKey(), 1635277619, witnesses)
	if err != nil {
		panic(err)
	}

	return o, signers
}
