package key

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/common/keypair"
)

func TestGenerateKP(t *testing.T) {
	kp, err := generateKP("", false)
	require.NoError(t, err)
	require.True(t, keypair.IsPublicKey(kp.PublicKey()))

	parsed, err := generateKP(kp.Seed(), true)
	require.NoError(t, err)
	require.Equal(t, kp.PublicKey(), parsed.PublicKey())

	_, err = generateKP("showme", true)
	require.Error(t, err)

	// a public key can not sign
	_, err = generateKP(kp.PublicKey(), true)
	require.Error(t, err)
}

func TestGenerateEncoders(t *testing.T) {
	kp := keyPair{Seed: "seed", PublicKey: "public"}

	{
		var b bytes.Buffer
		require.NoError(t, encoders["oneline"](kp, &b))
		require.Equal(t, "seed public\n", b.String())
	}

	{
		var b bytes.Buffer
		require.NoError(t, encoders["default"](kp, &b))
		require.True(t, strings.Contains(b.String(), "Secret Seed: seed"))
		require.True(t, strings.Contains(b.String(), "Public Key: public"))
	}

	{
		var b bytes.Buffer
		require.NoError(t, encoders["json"](kp, &b))

		var decoded keyPair
		require.NoError(t, json.Unmarshal(b.Bytes(), &decoded))
		require.Equal(t, kp, decoded)
	}
}
