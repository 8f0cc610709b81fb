package message

import (
	"encoding/json"

	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/errors"
)

type WitnessSignature struct {
	Witness   string `json:"witness"`
	Signature string `json:"signature"`
}

// Envelope is the signed message carried by the channels. `Data` is the
// base64url encoded json payload and `Signature` is made by `Sender` over
// the decoded payload.
type Envelope struct {
	Data              string             `json:"data"`
	Sender            string             `json:"sender"`
	Signature         string             `json:"signature"`
	MessageID         string             `json:"message_id"`
	WitnessSignatures []WitnessSignature `json:"witness_signatures"`
}

// MessageID derives the id of an envelope from its encoded payload and
// signature.
func MessageID(data, signature string) string {
	return common.Hash(data, signature)
}

// Seal signs raw payload bytes with signer.
func Seal(signer keypair.Signer, data []byte) (Envelope, error) {
	signature, err := signer.Sign(data)
	if err != nil {
		return Envelope{}, err
	}

	encoded := common.EncodeBase64(data)
	encodedSignature := common.EncodeBase64(signature)

	return Envelope{
		Data:              encoded,
		Sender:            signer.PublicKey(),
		Signature:         encodedSignature,
		MessageID:         MessageID(encoded, encodedSignature),
		WitnessSignatures: []WitnessSignature{},
	}, nil
}

// SealData marshals d and seals it.
func SealData(signer keypair.Signer, d interface{}) (Envelope, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return Envelope{}, errors.InvalidMessageData.Clone().SetData("error", err.Error())
	}

	return Seal(signer, b)
}

func (e Envelope) Serialize() ([]byte, error) {
	return json.Marshal(e)
}

func (e Envelope) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}

func (e Envelope) Clone() Envelope {
	n := e
	n.WitnessSignatures = make([]WitnessSignature, len(e.WitnessSignatures))
	copy(n.WitnessSignatures, e.WitnessSignatures)

	return n
}

// DecodeData returns the raw json payload.
func (e Envelope) DecodeData() ([]byte, error) {
	b, err := common.DecodeBase64(e.Data)
	if err != nil {
		return nil, errors.InvalidEnvelope.Clone().SetData("reason", "data is not base64url")
	}

	return b, nil
}

// IsWellFormed checks the envelope has every field, properly encoded.
func (e Envelope) IsWellFormed() error {
	switch {
	case len(e.Data) < 1:
		return errors.InvalidEnvelope.Clone().SetData("reason", "empty data")
	case len(e.Sender) < 1:
		return errors.InvalidEnvelope.Clone().SetData("reason", "empty sender")
	case len(e.Signature) < 1:
		return errors.InvalidEnvelope.Clone().SetData("reason", "unsigned")
	case len(e.MessageID) < 1:
		return errors.InvalidEnvelope.Clone().SetData("reason", "empty message_id")
	case !common.IsBase64(e.Data):
		return errors.InvalidEnvelope.Clone().SetData("reason", "data is not base64url")
	case !common.IsBase64(e.Signature):
		return errors.InvalidEnvelope.Clone().SetData("reason", "signature is not base64url")
	}

	return nil
}

// VerifySignature checks the sender signed the payload.
func (e Envelope) VerifySignature() error {
	if err := e.IsWellFormed(); err != nil {
		return err
	}

	data, _ := common.DecodeBase64(e.Data)
	signature, _ := common.DecodeBase64(e.Signature)

	return keypair.Verify(e.Sender, data, signature)
}

func (e Envelope) CheckMessageID() error {
	if expected := MessageID(e.Data, e.Signature); expected != e.MessageID {
		return errors.InvalidMessageID.Clone().
			SetData("message_id", e.MessageID).
			SetData("expected", expected)
	}

	return nil
}

// HasWitnessSignature checks whether witness already acknowledged.
func (e Envelope) HasWitnessSignature(witness string) bool {
	for _, w := range e.WitnessSignatures {
		if w.Witness == witness {
			return true
		}
	}

	return false
}

// AddWitnessSignature appends ws unless the witness already signed; it
// returns false for duplicates.
func (e *Envelope) AddWitnessSignature(ws WitnessSignature) bool {
	if e.HasWitnessSignature(ws.Witness) {
		return false
	}
	e.WitnessSignatures = append(e.WitnessSignatures, ws)

	return true
}

// SignWitness makes the signature of a witness acknowledging messageID.
func SignWitness(signer keypair.Signer, messageID string) (WitnessSignature, error) {
	signature, err := signer.Sign([]byte(messageID))
	if err != nil {
		return WitnessSignature{}, err
	}

	return WitnessSignature{
		Witness:   signer.PublicKey(),
		Signature: common.EncodeBase64(signature),
	}, nil
}

// VerifyWitnessSignature checks the witness signed messageID.
func VerifyWitnessSignature(messageID string, ws WitnessSignature) error {
	signature, err := common.DecodeBase64(ws.Signature)
	if err != nil || len(signature) < 1 {
		return errors.UnauthorizedSender.Clone().
			SetData("sender", ws.Witness).
			SetData("reason", "signature is not base64url")
	}

	return keypair.Verify(ws.Witness, []byte(messageID), signature)
}
