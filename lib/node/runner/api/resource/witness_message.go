package resource

import (
	"github.com/nvellon/hal"

	"github.com/laonet/laocoord/lib/witness"
)

type WitnessMessage struct {
	laoID string
	m     witness.Message
}

func NewWitnessMessage(laoID string, m witness.Message) *WitnessMessage {
	return &WitnessMessage{laoID: laoID, m: m}
}

func (r WitnessMessage) GetMap() hal.Entry {
	return hal.Entry{
		"message_id":  r.m.MessageID,
		"channel":     r.m.Channel.String(),
		"title":       r.m.Title,
		"description": r.m.Description,
		"signatures":  r.m.Signatures,
		"signers":     r.m.Signers(),
		"state":       r.m.State,
		"canceled":    r.m.Canceled,
	}
}

func (r WitnessMessage) Resource() *hal.Resource {
	res := hal.NewResource(r, r.LinkSelf())
	res.AddLink("lao", hal.NewLink(ReplaceURL(URLLao, "id", r.laoID)))

	return res
}

func (r WitnessMessage) LinkSelf() string {
	return ReplaceURL(URLLaoWitnessMessage, "id", r.laoID, "message", r.m.MessageID)
}
