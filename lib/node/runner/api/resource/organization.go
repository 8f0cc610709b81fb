package resource

import (
	"github.com/nvellon/hal"

	"github.com/laonet/laocoord/lib/lao"
)

type Organization struct {
	o lao.Organization
}

func NewOrganization(o lao.Organization) *Organization {
	return &Organization{o: o}
}

func (r Organization) GetMap() hal.Entry {
	return hal.Entry{
		"id":                r.o.ID,
		"name":              r.o.Name,
		"organizer":         r.o.Organizer,
		"witnesses":         r.o.Witnesses,
		"creation":          r.o.Creation,
		"channel":           r.o.Channel().String(),
		"consensus_channel": r.o.ConsensusChannel().String(),
	}
}

func (r Organization) Resource() *hal.Resource {
	res := hal.NewResource(r, r.LinkSelf())
	res.AddLink("instances", hal.NewLink(ReplaceURL(URLLaoInstances, "id", r.o.ID)))
	res.AddLink("nodes", hal.NewLink(ReplaceURL(URLLaoNodes, "id", r.o.ID)))
	res.AddLink("witness_messages", hal.NewLink(ReplaceURL(URLLaoWitnessMessages, "id", r.o.ID)+"{?state}", hal.LinkAttr{"templated": true}))
	res.AddLink("actions", hal.NewLink(ReplaceURL(URLLaoActions, "id", r.o.ID)))

	return res
}

func (r Organization) LinkSelf() string {
	return ReplaceURL(URLLao, "id", r.o.ID)
}
