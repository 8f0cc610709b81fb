package consensus

import (
	"time"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message/messagedata"
)

type Phase string

const (
	PhaseStarted  Phase = "STARTED"
	PhaseWaiting  Phase = "WAITING"
	PhaseAccepted Phase = "ACCEPTED"
	PhaseFailed   Phase = "FAILED"
)

func (p Phase) IsTerminal() bool {
	return p == PhaseAccepted || p == PhaseFailed
}

type AcceptState string

const (
	AcceptPending  AcceptState = "PENDING"
	AcceptAccepted AcceptState = "ACCEPTED"
	AcceptRejected AcceptState = "REJECTED"
)

func acceptStateOf(accept bool) AcceptState {
	if accept {
		return AcceptAccepted
	}
	return AcceptRejected
}

type Key = messagedata.ConsensusKey

// Response is an answer of an acceptor, kept after the instance was decided.
type Response struct {
	Sender    string      `json:"sender"`
	State     AcceptState `json:"state"`
	MessageID string      `json:"message_id"`
	At        time.Time   `json:"at"`
}

// ElectInstance is the state of a single decree. The instance is identified
// by InstanceID; MessageID is the id of the Elect which created it.
type ElectInstance struct {
	InstanceID     string                 `json:"instance_id"`
	Key            Key                    `json:"key"`
	Value          string                 `json:"value"`
	Proposer       string                 `json:"proposer"`
	Creation       int64                  `json:"creation"`
	MessageID      string                 `json:"message_id"`
	Channel        channel.Channel        `json:"channel"`
	AcceptorsState map[string]AcceptState `json:"acceptors_state"`
	Phase          Phase                  `json:"phase"`
	LateResponses  []Response             `json:"late_responses,omitempty"`
}

func newElectInstance(o lao.Organization, proposer, messageID string, elect messagedata.Elect) *ElectInstance {
	acceptors := map[string]AcceptState{}
	for _, a := range o.Acceptors() {
		acceptors[a] = AcceptPending
	}

	return &ElectInstance{
		InstanceID:     elect.InstanceID,
		Key:            elect.Key,
		Value:          elect.Value,
		Proposer:       proposer,
		Creation:       elect.CreatedAt,
		MessageID:      messageID,
		Channel:        o.ConsensusChannel(),
		AcceptorsState: acceptors,
		Phase:          PhaseStarted,
	}
}

func (e ElectInstance) Clone() ElectInstance {
	n := e
	n.AcceptorsState = make(map[string]AcceptState, len(e.AcceptorsState))
	for k, v := range e.AcceptorsState {
		n.AcceptorsState[k] = v
	}
	if e.LateResponses != nil {
		n.LateResponses = append([]Response{}, e.LateResponses...)
	}

	return n
}

// Count returns the number of known acceptors and how many of them accepted
// and rejected.
func (e ElectInstance) Count() (known, accepted, rejected int) {
	known = len(e.AcceptorsState)
	for _, s := range e.AcceptorsState {
		switch s {
		case AcceptAccepted:
			accepted++
		case AcceptRejected:
			rejected++
		}
	}

	return
}

func (e ElectInstance) Serialize() ([]byte, error) {
	return common.JSONMarshalIndent(e)
}

// Node is what the organization knows about one of its members: the role and
// the answer it gave to every instance it took part in.
type Node struct {
	PublicKey string                 `json:"public_key"`
	Role      lao.Role               `json:"role"`
	Instances map[string]AcceptState `json:"instances"`
}

func (n Node) Clone() Node {
	c := n
	c.Instances = make(map[string]AcceptState, len(n.Instances))
	for k, v := range n.Instances {
		c.Instances[k] = v
	}
	return c
}

type EventType string

const (
	EventCreated        EventType = "created"
	EventAcceptRecorded EventType = "accept_recorded"
	EventPhaseChanged   EventType = "phase_changed"
	EventLateResponse   EventType = "late_response"
)

type Event struct {
	Type     EventType
	LaoID    string
	Sender   string
	Instance ElectInstance
}
