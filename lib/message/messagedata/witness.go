package messagedata

import (
	"github.com/laonet/laocoord/lib/common"
)

// WitnessMessage acknowledges the message MessageID; Signature is the
// witness signature over the message id.
type WitnessMessage struct {
	Object    string `json:"object"`
	Action    string `json:"action"`
	MessageID string `json:"message_id"`
	Signature string `json:"signature"`
}

func NewWitnessMessage(messageID, signature string) WitnessMessage {
	return WitnessMessage{
		Object:    MessageObject,
		Action:    WitnessAction,
		MessageID: messageID,
		Signature: signature,
	}
}

func (WitnessMessage) GetObject() string { return MessageObject }
func (WitnessMessage) GetAction() string { return WitnessAction }

func (w WitnessMessage) Verify() error {
	if !common.IsBase64(w.MessageID) {
		return invalid("message_id", "should be base64url encoded")
	}
	if !common.IsBase64(w.Signature) {
		return invalid("signature", "should be base64url encoded")
	}

	return nil
}
