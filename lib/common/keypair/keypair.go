//
// Encapsulate Stellar's keypair package
//
// Provides the signer used by the engines and the dispatcher, on top of
// Stellar's ed25519 key pairs. Public keys are Stellar addresses.
//
package keypair

import (
	stellar "github.com/stellar/go/keypair"

	"github.com/laonet/laocoord/lib/errors"
)

// Aliases to stellar types
type Full = stellar.Full
type KP = stellar.KP

// Aliases to stellar functions
var Parse = stellar.Parse
var RandomCanFail = stellar.Random

// Signer signs with the local key pair.
type Signer interface {
	PublicKey() string
	Sign(data []byte) ([]byte, error)
}

// KeypairSigner is a Signer backed by a full stellar key pair.
type KeypairSigner struct {
	kp *Full
}

func NewSigner(kp *Full) *KeypairSigner {
	return &KeypairSigner{kp: kp}
}

// NewSignerFromSeed parses the secret seed of a key pair.
func NewSignerFromSeed(seed string) (*KeypairSigner, error) {
	kp, err := Parse(seed)
	if err != nil {
		return nil, err
	}

	full, ok := kp.(*Full)
	if !ok {
		return nil, errors.UnauthorizedSender.Clone().SetData("reason", "seed is required to sign")
	}

	return NewSigner(full), nil
}

func (s *KeypairSigner) PublicKey() string {
	return s.kp.Address()
}

func (s *KeypairSigner) Seed() string {
	return s.kp.Seed()
}

func (s *KeypairSigner) Sign(data []byte) ([]byte, error) {
	return s.kp.Sign(data)
}

// Verify checks signature was made over data by the owner of publicKey. Any
// failure, including a malformed public key, is `UnauthorizedSender`.
func Verify(publicKey string, data, signature []byte) error {
	kp, err := Parse(publicKey)
	if err != nil {
		return errors.UnauthorizedSender.Clone().SetData("sender", publicKey).SetData("reason", "invalid public key")
	}

	if err := kp.Verify(data, signature); err != nil {
		return errors.UnauthorizedSender.Clone().SetData("sender", publicKey).SetData("reason", "bad signature")
	}

	return nil
}

// IsPublicKey checks s is a valid address.
func IsPublicKey(s string) bool {
	_, err := Parse(s)
	return err == nil
}
