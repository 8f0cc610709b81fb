package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/storage"
	"github.com/laonet/laocoord/lib/store"
)

type testNode struct {
	nr      *NodeRunner
	network *channel.MemoryNetwork
	st      *storage.LevelDBBackend
}

// newTestNode makes a node of o on the memory network of prev; a nil prev
// starts a new network.
func newTestNode(t *testing.T, prev *channel.MemoryNetwork, signer keypair.Signer, o lao.Organization, st *storage.LevelDBBackend) *testNode {
	registry := lao.NewRegistry()
	require.NoError(t, registry.Add(o))

	messages, err := store.NewLevelDBMessageStore(st, 100)
	require.NoError(t, err)

	network := prev.NewMemoryNetwork()
	nr, err := NewNodeRunner(signer, registry, network, st, messages, nil, common.NewTestConfig())
	require.NoError(t, err)

	return &testNode{nr: nr, network: network, st: st}
}

func (n *testNode) start(t *testing.T) {
	go n.network.Start()
	go n.nr.Start()

	o := n.nr.Registry().All()[0]
	waitFor(t, func() bool {
		return n.network.IsSubscribed(o.Channel()) && n.network.IsSubscribed(o.ConsensusChannel())
	})
	n.nr.Dispatcher().Wait()
}

func (n *testNode) stop() {
	n.nr.Stop()
	n.network.Stop()
}

func waitFor(t *testing.T, condition func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Fail(t, "condition was not met in time")
}

func seal(t *testing.T, signer keypair.Signer, d messagedata.Data) message.Envelope {
	b, err := messagedata.Marshal(d)
	require.NoError(t, err)
	env, err := message.Seal(signer, b)
	require.NoError(t, err)

	return env
}

func testMeeting(laoID, name string) messagedata.CreateMeeting {
	return messagedata.CreateMeeting{
		Object:   messagedata.MeetingObject,
		Action:   messagedata.CreateAction,
		ID:       common.Hash("M", laoID, "1635277700", name),
		Name:     name,
		Creation: 1635277700,
		Start:    1635277800,
	}
}

func errorCode(t *testing.T, err error) uint {
	require.Error(t, err)
	e, ok := err.(*errors.Error)
	require.True(t, ok, "unexpected error: %v", err)
	return e.Code
}

// newTestNodes starts the organizer and the witnesses of an organization
// with witnessCount witnesses on the same memory network.
func newTestNodes(t *testing.T, witnessCount int) (lao.Organization, []*testNode, func()) {
	o, signers := lao.NewTestOrganization("lao", witnessCount)

	var nodes []*testNode
	var prev *channel.MemoryNetwork
	for _, signer := range signers {
		n := newTestNode(t, prev, signer, o, storage.NewTestStorage())
		prev = n.network
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		n.start(t)
	}

	return o, nodes, func() {
		for _, n := range nodes {
			n.stop()
			n.st.Close()
		}
	}
}

func TestNodeRunnerConsensus(t *testing.T) {
	o, nodes, closeFunc := newTestNodes(t, 2)
	defer closeFunc()

	key := consensus.Key{Type: messagedata.RollCallObject, ID: common.Hash("rc"), Property: "state"}
	inst, err := nodes[0].nr.Consensus().Propose(context.Background(), o.ID, key, "closed", 1635277700)
	require.NoError(t, err)

	for _, n := range nodes {
		nr := n.nr
		waitFor(t, func() bool {
			i, err := nr.Consensus().Instance(o.ID, inst.InstanceID)
			return err == nil && i.Phase == consensus.PhaseAccepted
		})
	}

	// every node knows the answers of every acceptor
	for _, n := range nodes {
		i, err := n.nr.Consensus().Instance(o.ID, inst.InstanceID)
		require.NoError(t, err)
		require.Equal(t, "closed", i.Value)
		require.Equal(t, nodes[0].nr.PublicKey(), i.Proposer)
	}
}

func TestNodeRunnerWitnessedAction(t *testing.T) {
	o, nodes, closeFunc := newTestNodes(t, 2)
	defer closeFunc()

	organizer := nodes[0].nr
	env, err := organizer.Dispatcher().Seal(testMeeting(o.ID, "standup"))
	require.NoError(t, err)
	require.NoError(t, organizer.Dispatcher().Forward(context.Background(), o.Channel(), env))

	for _, n := range nodes {
		nr := n.nr
		waitFor(t, func() bool { return nr.Actions().Has(o.ID, env.MessageID) })
	}

	for _, n := range nodes {
		a, found := n.nr.Actions().Get(o.ID, env.MessageID)
		require.True(t, found)
		require.Equal(t, messagedata.MeetingObject, a.Object)
		require.Equal(t, o.Organizer, a.Sender)
		require.Equal(t, "New Meeting was created", a.Title)
		require.Equal(t, 1, len(n.nr.Actions().List(o.ID)))
	}

	// the organizer collected the signatures of both witnesses
	m, err := organizer.Witness().Message(o.ID, env.MessageID)
	require.NoError(t, err)
	require.Equal(t, 2, len(m.Signatures))

	// the stored envelope carries the signatures
	stored, err := organizer.messages.Get(o.ID, env.MessageID)
	require.NoError(t, err)
	require.Equal(t, 2, len(stored.WitnessSignatures))
}

func TestNodeRunnerWitnessedActionUnauthorized(t *testing.T) {
	o, nodes, closeFunc := newTestNodes(t, 1)
	defer closeFunc()

	witnessNode := nodes[1].nr

	// a witness is not the organizer
	env := seal(t, nodes[1].nr.signer, testMeeting(o.ID, "standup"))
	err := witnessNode.Dispatcher().HandleSerial(context.Background(), o.Channel(), env)
	require.Equal(t, errors.UnauthorizedSender.Code, errorCode(t, err))
	require.False(t, witnessNode.Actions().Has(o.ID, env.MessageID))

	// actions are published on the organization channel only
	env, err = nodes[0].nr.Dispatcher().Seal(testMeeting(o.ID, "retro"))
	require.NoError(t, err)
	err = witnessNode.Dispatcher().HandleSerial(context.Background(), o.ConsensusChannel(), env)
	require.Equal(t, errors.InvalidChannel.Code, errorCode(t, err))
}

func TestNodeRunnerUpdatePropertiesRestore(t *testing.T) {
	o, signers := lao.NewTestOrganization("lao", 0)
	st := storage.NewTestStorage()
	defer st.Close()

	witness := keypair.RandomSigner().PublicKey()
	update := messagedata.UpdateLaoProperties{
		Object:       messagedata.LaoObject,
		Action:       messagedata.UpdatePropertiesAction,
		ID:           o.ID,
		Name:         "renamed",
		LastModified: 1635277900,
		Witnesses:    []string{witness},
	}

	{
		n := newTestNode(t, nil, signers[0], o, st)
		n.start(t)

		// the id must be the one of the organization
		other := update
		other.ID = common.Hash("other")
		err := n.nr.Dispatcher().HandleSerial(context.Background(), o.Channel(), seal(t, signers[0], other))
		require.Equal(t, errors.InvalidMessageData.Code, errorCode(t, err))

		// without witnesses, the action is applied at once
		env := seal(t, signers[0], update)
		require.NoError(t, n.nr.Dispatcher().Forward(context.Background(), o.Channel(), env))
		require.True(t, n.nr.Actions().Has(o.ID, env.MessageID))

		updated, err := n.nr.Registry().Get(o.ID)
		require.NoError(t, err)
		require.Equal(t, "renamed", updated.Name)
		require.Equal(t, []string{witness}, updated.Witnesses)

		n.stop()
	}

	{ // the restarted node restores the properties from its storage
		n := newTestNode(t, nil, signers[0], o, st)
		n.start(t)
		defer n.stop()

		restored, err := n.nr.Registry().Get(o.ID)
		require.NoError(t, err)
		require.Equal(t, "renamed", restored.Name)
		require.Equal(t, []string{witness}, restored.Witnesses)
		require.Equal(t, 1, len(n.nr.Actions().List(o.ID)))
	}
}

func TestNodeRunnerCatchup(t *testing.T) {
	o, signers := lao.NewTestOrganization("lao", 0)

	var network *channel.MemoryNetwork
	network = network.NewMemoryNetwork()
	defer network.Stop()

	// published before the node joined
	env := seal(t, signers[0], testMeeting(o.ID, "standup"))
	require.NoError(t, network.Publish(context.Background(), o.Channel(), env))

	st := storage.NewTestStorage()
	defer st.Close()

	n := newTestNode(t, network, signers[0], o, st)
	n.start(t)
	defer n.stop()

	waitFor(t, func() bool { return n.nr.Actions().Has(o.ID, env.MessageID) })
}

func TestNodeRunnerInvalidThreshold(t *testing.T) {
	o, signers := lao.NewTestOrganization("lao", 0)
	registry := lao.NewRegistry()
	require.NoError(t, registry.Add(o))

	st := storage.NewTestStorage()
	defer st.Close()

	messages, err := store.NewLevelDBMessageStore(st, 100)
	require.NoError(t, err)

	conf := common.NewTestConfig()
	conf.WitnessThreshold = "150%"

	var network *channel.MemoryNetwork
	_, err = NewNodeRunner(signers[0], registry, network.NewMemoryNetwork(), st, messages, nil, conf)
	require.Equal(t, errors.InvalidThresholdPolicy.Code, errorCode(t, err))
}
