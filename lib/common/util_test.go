package common

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInStringArray(t *testing.T) {
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, GenerateUUID())
	}

	index, found := InStringArray(ids, ids[1])
	require.True(t, found)
	require.Equal(t, 1, index)

	index, found = InStringArray(ids, "unknown")
	require.False(t, found)
	require.Equal(t, -1, index)
}

func TestGetENVValue(t *testing.T) {
	key := "LAOCOORD_UNITTEST_" + GenerateUUID()[:8]
	require.Equal(t, "default", GetENVValue(key, "default"))

	os.Setenv(key, "")
	defer os.Unsetenv(key)
	require.Equal(t, "", GetENVValue(key, "default"))
}
