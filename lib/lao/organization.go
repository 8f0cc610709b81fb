package lao

import (
	"sort"
	"strconv"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/errors"
)

type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleWitness   Role = "witness"
)

// Organization is a LAO: one organizer and the witnesses approving its
// actions.
type Organization struct {
	ID        string   `json:"id" yaml:"-"`
	Name      string   `json:"name" yaml:"name"`
	Organizer string   `json:"organizer" yaml:"organizer"`
	Witnesses []string `json:"witnesses" yaml:"witnesses"`

	// Creation is a Unix timestamp
	Creation int64 `json:"creation" yaml:"creation"`
}

func DeriveID(organizer string, creation int64, name string) string {
	return common.Hash(organizer, strconv.FormatInt(creation, 10), name)
}

func NewOrganization(name, organizer string, creation int64, witnesses []string) (Organization, error) {
	o := Organization{
		Name:      name,
		Organizer: organizer,
		Witnesses: append([]string{}, witnesses...),
		Creation:  creation,
	}
	o.ID = DeriveID(organizer, creation, name)

	if err := o.Validate(); err != nil {
		return Organization{}, err
	}

	return o, nil
}

func (o Organization) Validate() error {
	invalid := func(reason string) error {
		return errors.InvalidOrganization.Clone().SetData("name", o.Name).SetData("reason", reason)
	}

	if len(o.Name) < 1 {
		return invalid("empty name")
	}
	if o.Creation < 0 {
		return invalid("creation should be minimum 0")
	}
	if !keypair.IsPublicKey(o.Organizer) {
		return invalid("invalid organizer public key")
	}
	if o.ID != DeriveID(o.Organizer, o.Creation, o.Name) {
		return invalid("id does not match organizer, creation and name")
	}

	return validateWitnesses(o.Name, o.Witnesses)
}

func validateWitnesses(name string, witnesses []string) error {
	seen := map[string]bool{}
	for _, w := range witnesses {
		if !keypair.IsPublicKey(w) {
			return errors.InvalidOrganization.Clone().SetData("name", name).SetData("reason", "invalid witness public key: "+w)
		}
		if seen[w] {
			return errors.InvalidOrganization.Clone().SetData("name", name).SetData("reason", "duplicated witness: "+w)
		}
		seen[w] = true
	}

	return nil
}

func (o Organization) Clone() Organization {
	n := o
	n.Witnesses = append([]string{}, o.Witnesses...)

	return n
}

func (o Organization) Channel() channel.Channel {
	return channel.NewLaoChannel(o.ID)
}

func (o Organization) ConsensusChannel() channel.Channel {
	return channel.NewConsensusChannel(o.ID)
}

func (o Organization) IsWitness(publicKey string) bool {
	_, found := common.InStringArray(o.Witnesses, publicKey)
	return found
}

// Role returns the role of publicKey; the organizer may also be a witness,
// organizer wins.
func (o Organization) Role(publicKey string) (Role, bool) {
	if publicKey == o.Organizer {
		return RoleOrganizer, true
	}
	if o.IsWitness(publicKey) {
		return RoleWitness, true
	}

	return "", false
}

// IsAcceptor checks publicKey may answer an election.
func (o Organization) IsAcceptor(publicKey string) bool {
	_, found := o.Role(publicKey)
	return found
}

// Acceptors returns the organizer and the witnesses, sorted, without
// duplicates.
func (o Organization) Acceptors() []string {
	seen := map[string]bool{o.Organizer: true}
	acceptors := []string{o.Organizer}
	for _, w := range o.Witnesses {
		if seen[w] {
			continue
		}
		seen[w] = true
		acceptors = append(acceptors, w)
	}
	sort.Strings(acceptors)

	return acceptors
}
