package keypair

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/errors"
)

func TestSignerSignAndVerify(t *testing.T) {
	signer := RandomSigner()
	data := []byte("showme")

	signature, err := signer.Sign(data)
	require.NoError(t, err)
	require.NoError(t, Verify(signer.PublicKey(), data, signature))

	err = Verify(signer.PublicKey(), []byte("killme"), signature)
	require.True(t, stderrors.Is(err, errors.UnauthorizedSender))

	other := RandomSigner()
	err = Verify(other.PublicKey(), data, signature)
	require.True(t, stderrors.Is(err, errors.UnauthorizedSender))
}

func TestSignerFromSeed(t *testing.T) {
	kp := Random()

	signer, err := NewSignerFromSeed(kp.Seed())
	require.NoError(t, err)
	require.Equal(t, kp.Address(), signer.PublicKey())

	_, err = NewSignerFromSeed(kp.Address())
	require.True(t, stderrors.Is(err, errors.UnauthorizedSender))
}

func TestVerifyInvalidPublicKey(t *testing.T) {
	err := Verify("not-an-address", []byte("a"), []byte("b"))
	require.True(t, stderrors.Is(err, errors.UnauthorizedSender))
	require.False(t, IsPublicKey("not-an-address"))
	require.True(t, IsPublicKey(Random().Address()))
}
