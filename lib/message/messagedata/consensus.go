package messagedata

import (
	"strconv"

	"github.com/laonet/laocoord/lib/common"
)

type ConsensusKey struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Property string `json:"property"`
}

// Elect proposes Value for Key.
type Elect struct {
	Object     string       `json:"object"`
	Action     string       `json:"action"`
	InstanceID string       `json:"instance_id"`
	Key        ConsensusKey `json:"key"`
	Value      string       `json:"value"`

	// CreatedAt is a Unix timestamp
	CreatedAt int64 `json:"created_at"`
}

// InstanceID derives the id of the consensus instance deciding value for
// key.
func InstanceID(creation int64, key ConsensusKey, value string) string {
	return common.Hash(
		ConsensusObject,
		strconv.FormatInt(creation, 10),
		key.Type,
		key.ID,
		key.Property,
		value,
	)
}

func NewElect(key ConsensusKey, value string, creation int64) Elect {
	return Elect{
		Object:     ConsensusObject,
		Action:     ElectAction,
		InstanceID: InstanceID(creation, key, value),
		Key:        key,
		Value:      value,
		CreatedAt:  creation,
	}
}

func (Elect) GetObject() string { return ConsensusObject }
func (Elect) GetAction() string { return ElectAction }

func (e Elect) Verify() error {
	if e.CreatedAt < 0 {
		return invalid("created_at", "should be minimum 0")
	}
	if len(e.Key.Type) < 1 || len(e.Key.ID) < 1 || len(e.Key.Property) < 1 {
		return invalid("key", "type, id and property are required")
	}
	if e.InstanceID != InstanceID(e.CreatedAt, e.Key, e.Value) {
		return invalid("instance_id", "does not match the proposal")
	}

	return nil
}

// ElectAccept is the answer of an acceptor to the Elect with MessageID.
type ElectAccept struct {
	Object     string `json:"object"`
	Action     string `json:"action"`
	InstanceID string `json:"instance_id"`
	MessageID  string `json:"message_id"`
	Accept     bool   `json:"accept"`
}

func NewElectAccept(instanceID, messageID string, accept bool) ElectAccept {
	return ElectAccept{
		Object:     ConsensusObject,
		Action:     ElectAcceptAction,
		InstanceID: instanceID,
		MessageID:  messageID,
		Accept:     accept,
	}
}

func (ElectAccept) GetObject() string { return ConsensusObject }
func (ElectAccept) GetAction() string { return ElectAcceptAction }

func (e ElectAccept) Verify() error {
	if !common.IsBase64(e.InstanceID) {
		return invalid("instance_id", "should be base64url encoded")
	}
	if !common.IsBase64(e.MessageID) {
		return invalid("message_id", "should be base64url encoded")
	}

	return nil
}

// Vote is the final decision of the proposer. InstanceID is optional.
type Vote struct {
	Object     string `json:"object"`
	Action     string `json:"action"`
	InstanceID string `json:"instance_id,omitempty"`
	MessageID  string `json:"message_id"`
	Accept     bool   `json:"accept"`
}

func NewVote(instanceID, messageID string, accept bool) Vote {
	return Vote{
		Object:     ConsensusObject,
		Action:     VoteAction,
		InstanceID: instanceID,
		MessageID:  messageID,
		Accept:     accept,
	}
}

func (Vote) GetObject() string { return ConsensusObject }
func (Vote) GetAction() string { return VoteAction }

func (v Vote) Verify() error {
	if len(v.InstanceID) > 0 && !common.IsBase64(v.InstanceID) {
		return invalid("instance_id", "should be base64url encoded")
	}
	if !common.IsBase64(v.MessageID) {
		return invalid("message_id", "should be base64url encoded")
	}

	return nil
}
