package resource

import (
	"github.com/nvellon/hal"

	"github.com/laonet/laocoord/lib/lao"
)

type Action struct {
	laoID string
	a     lao.Action
}

func NewAction(laoID string, a lao.Action) *Action {
	return &Action{laoID: laoID, a: a}
}

func (r Action) GetMap() hal.Entry {
	return hal.Entry{
		"message_id":  r.a.MessageID,
		"object":      r.a.Object,
		"action":      r.a.Action,
		"sender":      r.a.Sender,
		"title":       r.a.Title,
		"description": r.a.Description,
		"witnesses":   r.a.Witnesses,
		"applied":     r.a.Applied,
	}
}

func (r Action) Resource() *hal.Resource {
	res := hal.NewResource(r, r.LinkSelf())
	res.AddLink("lao", hal.NewLink(ReplaceURL(URLLao, "id", r.laoID)))
	res.AddLink("witness_message", hal.NewLink(ReplaceURL(URLLaoWitnessMessage, "id", r.laoID, "message", r.a.MessageID)))

	return res
}

func (r Action) LinkSelf() string {
	return ReplaceURL(URLLaoActions, "id", r.laoID) + "#" + r.a.MessageID
}
