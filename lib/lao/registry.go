package lao

import (
	"io/ioutil"
	"sort"
	"sync"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/laonet/laocoord/lib/channel"
	lerrors "github.com/laonet/laocoord/lib/errors"
)

// Registry keeps the organizations known by the node.
type Registry struct {
	sync.RWMutex

	organizations map[string]Organization
}

func NewRegistry() *Registry {
	return &Registry{organizations: map[string]Organization{}}
}

func (r *Registry) Add(o Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()

	if _, found := r.organizations[o.ID]; found {
		return lerrors.OrganizationAlreadyExists.Clone().SetData("id", o.ID)
	}
	r.organizations[o.ID] = o.Clone()

	return nil
}

func (r *Registry) Get(id string) (Organization, error) {
	r.RLock()
	defer r.RUnlock()

	o, found := r.organizations[id]
	if !found {
		return Organization{}, lerrors.OrganizationNotFound.Clone().SetData("id", id)
	}

	return o.Clone(), nil
}

// GetByChannel finds the organization owning ch.
func (r *Registry) GetByChannel(ch channel.Channel) (Organization, error) {
	id := ch.LaoID()
	if len(id) < 1 {
		return Organization{}, lerrors.OrganizationNotFound.Clone().SetData("channel", ch)
	}

	return r.Get(id)
}

func (r *Registry) All() []Organization {
	r.RLock()
	defer r.RUnlock()

	var organizations []Organization
	for _, o := range r.organizations {
		organizations = append(organizations, o.Clone())
	}
	sort.Slice(organizations, func(i, j int) bool {
		return organizations[i].ID < organizations[j].ID
	})

	return organizations
}

// UpdateProperties replaces the name and the witnesses of an organization;
// the id stays the one derived at creation.
func (r *Registry) UpdateProperties(id, name string, witnesses []string) (Organization, error) {
	r.Lock()
	defer r.Unlock()

	o, found := r.organizations[id]
	if !found {
		return Organization{}, lerrors.OrganizationNotFound.Clone().SetData("id", id)
	}

	if err := validateWitnesses(o.Name, witnesses); err != nil {
		return Organization{}, err
	}

	updated := o.Clone()
	updated.Witnesses = append([]string{}, witnesses...)
	if len(name) > 0 {
		updated.Name = name
	}

	r.organizations[id] = updated

	return updated.Clone(), nil
}

type rosterFile struct {
	Organizations []Organization `yaml:"organizations"`
}

// LoadRegistry reads a yaml roster:
//
//   organizations:
//     - name: lao
//       organizer: GABC...
//       creation: 1635277619
//       witnesses:
//         - GDEF...
func LoadRegistry(b []byte) (*Registry, error) {
	var roster rosterFile
	if err := yaml.Unmarshal(b, &roster); err != nil {
		return nil, errors.Wrap(err, "failed to parse roster")
	}

	r := NewRegistry()
	for _, o := range roster.Organizations {
		n, err := NewOrganization(o.Name, o.Organizer, o.Creation, o.Witnesses)
		if err != nil {
			return nil, err
		}
		if err := r.Add(n); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func LoadRegistryFromFile(path string) (*Registry, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read roster %q", path)
	}

	return LoadRegistry(b)
}

// MarshalRoster writes organizations as a yaml roster.
func MarshalRoster(organizations []Organization) ([]byte, error) {
	return yaml.Marshal(rosterFile{Organizations: organizations})
}
