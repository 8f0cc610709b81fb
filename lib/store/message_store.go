package store

import (
	"github.com/laonet/laocoord/lib/message"
)

// MessageStore keeps the envelopes handled per organization. Its `Add` is
// the deduplication point of the dispatcher.
type MessageStore interface {
	// Add stores env and returns false when its message id was already
	// stored for laoID.
	Add(laoID string, env message.Envelope) (bool, error)
	Has(laoID, messageID string) (bool, error)
	Get(laoID, messageID string) (message.Envelope, error)

	// Remove forgets messageID, so the envelope can be added again. Removing
	// an unknown message id is not an error.
	Remove(laoID, messageID string) error

	// AddWitnessSignature folds a witness acknowledgement into the stored
	// envelope.
	AddWitnessSignature(laoID, messageID string, ws message.WitnessSignature) error
}

const (
	MessagePrefix = "message"
	RecordPrefix  = "record"
)
