package store

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/storage"
)

func newEnvelope(t *testing.T) message.Envelope {
	env, err := message.Seal(keypair.RandomSigner(), []byte(`{"object":"consensus","action":"elect"}`))
	require.NoError(t, err)
	return env
}

func TestLevelDBMessageStoreAdd(t *testing.T) {
	st := storage.NewTestStorage()
	defer st.Close()

	ms, err := NewLevelDBMessageStore(st, 10)
	require.NoError(t, err)

	laoID := common.Hash("lao")
	env := newEnvelope(t)

	added, err := ms.Add(laoID, env)
	require.NoError(t, err)
	require.True(t, added)

	added, err = ms.Add(laoID, env)
	require.NoError(t, err)
	require.False(t, added)

	// other organization does not see it
	added, err = ms.Add(common.Hash("other"), env)
	require.NoError(t, err)
	require.True(t, added)

	fetched, err := ms.Get(laoID, env.MessageID)
	require.NoError(t, err)
	require.Equal(t, env.MessageID, fetched.MessageID)
	require.Equal(t, env.Data, fetched.Data)
}

func TestLevelDBMessageStoreSurvivesCacheEviction(t *testing.T) {
	st := storage.NewTestStorage()
	defer st.Close()

	ms, err := NewLevelDBMessageStore(st, 1)
	require.NoError(t, err)

	laoID := common.Hash("lao")
	first := newEnvelope(t)
	second := newEnvelope(t)

	_, err = ms.Add(laoID, first)
	require.NoError(t, err)
	_, err = ms.Add(laoID, second)
	require.NoError(t, err)

	// `first` is not in the cache anymore
	added, err := ms.Add(laoID, first)
	require.NoError(t, err)
	require.False(t, added)

	// a new store on the same storage knows the message
	reopened, err := NewLevelDBMessageStore(st, 10)
	require.NoError(t, err)
	exists, err := reopened.Has(laoID, second.MessageID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestLevelDBMessageStoreWitnessSignature(t *testing.T) {
	st := storage.NewTestStorage()
	defer st.Close()

	ms, err := NewLevelDBMessageStore(st, 10)
	require.NoError(t, err)

	laoID := common.Hash("lao")
	env := newEnvelope(t)

	ws, err := message.SignWitness(keypair.RandomSigner(), env.MessageID)
	require.NoError(t, err)

	err = ms.AddWitnessSignature(laoID, env.MessageID, ws)
	require.True(t, stderrors.Is(err, errors.StorageRecordDoesNotExist))

	_, err = ms.Add(laoID, env)
	require.NoError(t, err)
	require.NoError(t, ms.AddWitnessSignature(laoID, env.MessageID, ws))
	require.NoError(t, ms.AddWitnessSignature(laoID, env.MessageID, ws))

	fetched, err := ms.Get(laoID, env.MessageID)
	require.NoError(t, err)
	require.Equal(t, []message.WitnessSignature{ws}, fetched.WitnessSignatures)
}
