package resource

import (
	"github.com/nvellon/hal"

	"github.com/laonet/laocoord/lib/consensus"
)

type Node struct {
	laoID string
	n     consensus.Node
}

func NewNode(laoID string, n consensus.Node) *Node {
	return &Node{laoID: laoID, n: n}
}

func (r Node) GetMap() hal.Entry {
	return hal.Entry{
		"public_key": r.n.PublicKey,
		"role":       r.n.Role,
		"instances":  r.n.Instances,
	}
}

func (r Node) Resource() *hal.Resource {
	res := hal.NewResource(r, r.LinkSelf())
	res.AddLink("lao", hal.NewLink(ReplaceURL(URLLao, "id", r.laoID)))

	return res
}

func (r Node) LinkSelf() string {
	return ReplaceURL(URLLaoNode, "id", r.laoID, "node", r.n.PublicKey)
}

// NodeInfo describes the local node.
type NodeInfo struct {
	PublicKey     string
	Version       string
	Endpoint      string
	Organizations []string
}

func (r NodeInfo) GetMap() hal.Entry {
	return hal.Entry{
		"public_key":    r.PublicKey,
		"version":       r.Version,
		"endpoint":      r.Endpoint,
		"organizations": r.Organizations,
	}
}

func (r NodeInfo) Resource() *hal.Resource {
	res := hal.NewResource(r, r.LinkSelf())
	res.AddLink("laos", hal.NewLink(URLLaos))

	return res
}

func (r NodeInfo) LinkSelf() string {
	return URLNodeInfo
}
