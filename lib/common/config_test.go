/*
	In this file, there are unittests for checking Config struct.
*/
package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

//	TestConfigDefault tests the default values.
func TestConfigDefault(t *testing.T) {
	n := NewConfig()
	require.Equal(t, 8, n.WorkerPoolSize)
	require.Equal(t, 10000, n.DedupCacheSize)
	require.Equal(t, 1000, n.CatchupBufferLimit)
	require.Equal(t, "majority", n.WitnessThreshold)
	require.Equal(t, 30*time.Second, n.AcceptTimeout)
	require.Equal(t, 5*time.Second, n.PublishTimeout)
}
