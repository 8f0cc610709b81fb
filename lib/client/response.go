package client

import (
	"fmt"

	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/query"
)

type Problem struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Error is a problem answered by the api.
type Error struct {
	Problem Problem
}

func (e Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Problem.Status, e.Problem.Type, e.Problem.Title)
}

// QueryError is the error answer of a query.
type QueryError struct {
	query.AnswerError
}

func (e QueryError) Error() string {
	return fmt.Sprintf("query failed; code=%d %s", e.Code, e.Description)
}

type Link struct {
	Href      string `json:"href"`
	Templated bool   `json:"templated,omitempty"`
}

type NodeInfo struct {
	Links struct {
		Self Link `json:"self"`
		Laos Link `json:"laos"`
	} `json:"_links"`

	PublicKey     string   `json:"public_key"`
	Version       string   `json:"version"`
	Endpoint      string   `json:"endpoint"`
	Organizations []string `json:"organizations"`
}

type Lao struct {
	Links struct {
		Self            Link `json:"self"`
		Instances       Link `json:"instances"`
		Nodes           Link `json:"nodes"`
		WitnessMessages Link `json:"witness_messages"`
		Actions         Link `json:"actions"`
	} `json:"_links"`

	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Organizer        string   `json:"organizer"`
	Witnesses        []string `json:"witnesses"`
	Creation         int64    `json:"creation"`
	Channel          string   `json:"channel"`
	ConsensusChannel string   `json:"consensus_channel"`
}

type Instance struct {
	Links struct {
		Self     Link `json:"self"`
		Lao      Link `json:"lao"`
		Proposer Link `json:"proposer"`
	} `json:"_links"`

	InstanceID     string                           `json:"instance_id"`
	Key            consensus.Key                    `json:"key"`
	Value          string                           `json:"value"`
	Proposer       string                           `json:"proposer"`
	Creation       int64                            `json:"creation"`
	MessageID      string                           `json:"message_id"`
	Channel        string                           `json:"channel"`
	Phase          consensus.Phase                  `json:"phase"`
	AcceptorsState map[string]consensus.AcceptState `json:"acceptors_state"`
	Acceptors      int                              `json:"acceptors"`
	Accepted       int                              `json:"accepted"`
	Rejected       int                              `json:"rejected"`
}

type Node struct {
	Links struct {
		Self Link `json:"self"`
		Lao  Link `json:"lao"`
	} `json:"_links"`

	PublicKey string                           `json:"public_key"`
	Role      string                           `json:"role"`
	Instances map[string]consensus.AcceptState `json:"instances"`
}

type WitnessMessage struct {
	Links struct {
		Self Link `json:"self"`
		Lao  Link `json:"lao"`
	} `json:"_links"`

	MessageID   string                     `json:"message_id"`
	Channel     string                     `json:"channel"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	Signatures  []message.WitnessSignature `json:"signatures"`
	Signers     []string                   `json:"signers"`
	State       string                     `json:"state"`
	Canceled    bool                       `json:"canceled"`
}

type Action struct {
	Links struct {
		Self           Link `json:"self"`
		Lao            Link `json:"lao"`
		WitnessMessage Link `json:"witness_message"`
	} `json:"_links"`

	MessageID   string   `json:"message_id"`
	Object      string   `json:"object"`
	Action      string   `json:"action"`
	Sender      string   `json:"sender"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Witnesses   []string `json:"witnesses"`
	Applied     int64    `json:"applied"`
}

type pageLinks struct {
	Self Link `json:"self"`
}

type LaosPage struct {
	Links    pageLinks `json:"_links"`
	Count    int       `json:"count"`
	Embedded struct {
		Records []Lao `json:"records"`
	} `json:"_embedded"`
}

type InstancesPage struct {
	Links    pageLinks `json:"_links"`
	Count    int       `json:"count"`
	Embedded struct {
		Records []Instance `json:"records"`
	} `json:"_embedded"`
}

type NodesPage struct {
	Links    pageLinks `json:"_links"`
	Count    int       `json:"count"`
	Embedded struct {
		Records []Node `json:"records"`
	} `json:"_embedded"`
}

type WitnessMessagesPage struct {
	Links    pageLinks `json:"_links"`
	Count    int       `json:"count"`
	Embedded struct {
		Records []WitnessMessage `json:"records"`
	} `json:"_embedded"`
}

type ActionsPage struct {
	Links    pageLinks `json:"_links"`
	Count    int       `json:"count"`
	Embedded struct {
		Records []Action `json:"records"`
	} `json:"_embedded"`
}
