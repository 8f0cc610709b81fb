package resource

import (
	"github.com/nvellon/hal"

	"github.com/laonet/laocoord/lib/consensus"
)

type Instance struct {
	laoID string
	i     consensus.ElectInstance
}

func NewInstance(laoID string, i consensus.ElectInstance) *Instance {
	return &Instance{laoID: laoID, i: i}
}

func (r Instance) GetMap() hal.Entry {
	known, accepted, rejected := r.i.Count()

	return hal.Entry{
		"instance_id":     r.i.InstanceID,
		"key":             r.i.Key,
		"value":           r.i.Value,
		"proposer":        r.i.Proposer,
		"creation":        r.i.Creation,
		"message_id":      r.i.MessageID,
		"channel":         r.i.Channel.String(),
		"phase":           r.i.Phase,
		"acceptors_state": r.i.AcceptorsState,
		"late_responses":  r.i.LateResponses,
		"acceptors":       known,
		"accepted":        accepted,
		"rejected":        rejected,
	}
}

func (r Instance) Resource() *hal.Resource {
	res := hal.NewResource(r, r.LinkSelf())
	res.AddLink("lao", hal.NewLink(ReplaceURL(URLLao, "id", r.laoID)))
	res.AddLink("proposer", hal.NewLink(ReplaceURL(URLLaoNode, "id", r.laoID, "node", r.i.Proposer)))

	return res
}

func (r Instance) LinkSelf() string {
	return ReplaceURL(URLLaoInstance, "id", r.laoID, "instance", r.i.InstanceID)
}
