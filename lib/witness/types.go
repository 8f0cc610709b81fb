package witness

import (
	"sort"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/message"
)

type State string

const (
	StatePending       State = "PENDING"
	StateQuorumReached State = "QUORUM_REACHED"
)

// Message is the witnessing record of the message MessageID. Signatures
// only grow and keep one signature per witness.
type Message struct {
	MessageID   string                     `json:"message_id"`
	Channel     channel.Channel            `json:"channel"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	Signatures  []message.WitnessSignature `json:"signatures"`
	State       State                      `json:"state"`
	Canceled    bool                       `json:"canceled,omitempty"`
}

func (m Message) Clone() Message {
	n := m
	n.Signatures = append([]message.WitnessSignature{}, m.Signatures...)
	return n
}

func (m Message) HasSigned(witness string) bool {
	for _, ws := range m.Signatures {
		if ws.Witness == witness {
			return true
		}
	}
	return false
}

// Signers returns the witnesses which signed, sorted.
func (m Message) Signers() []string {
	signers := make([]string, len(m.Signatures))
	for i, ws := range m.Signatures {
		signers[i] = ws.Witness
	}
	sort.Strings(signers)

	return signers
}

// PendingAction is run once, when the signatures of its message reach the
// policy.
type PendingAction struct {
	MessageID string
	Policy    Policy
	OnQuorum  func(Message)
}

type EventType string

const (
	EventRegistered     EventType = "registered"
	EventSignatureAdded EventType = "signature_added"
	EventQuorumReached  EventType = "quorum_reached"
	EventCanceled       EventType = "canceled"
)

type Event struct {
	Type    EventType
	LaoID   string
	Witness string
	Message Message
}
