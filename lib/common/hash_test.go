package common

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashLengthPrefixed(t *testing.T) {
	require.NotEqual(t, Hash("ab", "c"), Hash("a", "bc"))
	require.Equal(t, Hash("a", "bc"), Hash("a", "bc"))

	expected := sha256.Sum256([]byte("2ab1c"))
	require.Equal(t, EncodeBase64(expected[:]), Hash("ab", "c"))
}

func TestHashIsBase64(t *testing.T) {
	require.True(t, IsBase64(Hash("consensus")))
	require.False(t, IsBase64(""))
	require.False(t, IsBase64("not base64!"))
}
