package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/network"
	"github.com/laonet/laocoord/lib/node/runner"
	"github.com/laonet/laocoord/lib/storage"
	"github.com/laonet/laocoord/lib/store"
)

type clientTestContext struct {
	o      lao.Organization
	nr     *runner.NodeRunner
	ts     *httptest.Server
	client *Client
}

func prepareNode(t *testing.T) (clientTestContext, func()) {
	o, signers := lao.NewTestOrganization("lao", 0)
	registry := lao.NewRegistry()
	require.NoError(t, registry.Add(o))

	st := storage.NewTestStorage()
	messages, err := store.NewLevelDBMessageStore(st, 100)
	require.NoError(t, err)

	endpoint, err := common.ParseEndpoint("http://localhost:12346")
	require.NoError(t, err)
	config, err := network.NewHTTPServerConfigFromEndpoint("test", endpoint)
	require.NoError(t, err)
	server := network.NewHTTPServer(config)

	var transport *channel.MemoryNetwork
	nr, err := runner.NewNodeRunner(signers[0], registry, transport.NewMemoryNetwork(), st, messages, server, common.NewTestConfig())
	require.NoError(t, err)
	require.NoError(t, nr.Ready())

	ts := httptest.NewServer(server.Handler())
	c := NewClient(ts.URL)

	return clientTestContext{o: o, nr: nr, ts: ts, client: c}, func() {
		c.Close()
		ts.Close()
		nr.Stop()
		st.Close()
	}
}

func TestClientNodeInfo(t *testing.T) {
	p, closeFunc := prepareNode(t)
	defer closeFunc()

	info, err := p.client.LoadNodeInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, p.nr.PublicKey(), info.PublicKey)
	require.Equal(t, []string{p.o.ID}, info.Organizations)
	require.Equal(t, "/api/v1/laos", info.Links.Laos.Href)
}

func TestClientLaos(t *testing.T) {
	p, closeFunc := prepareNode(t)
	defer closeFunc()

	page, err := p.client.LoadLaos(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	require.Equal(t, p.o.ID, page.Embedded.Records[0].ID)

	l, err := p.client.LoadLao(context.Background(), p.o.ID)
	require.NoError(t, err)
	require.Equal(t, p.o.Name, l.Name)
	require.Equal(t, p.o.ConsensusChannel().String(), l.ConsensusChannel)

	_, err = p.client.LoadLao(context.Background(), common.Hash("unknown"))
	require.Error(t, err)
	e, ok := err.(Error)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, e.Problem.Status)
	require.Equal(t, errors.OrganizationNotFound.Message, e.Problem.Title)
}

func TestClientPublish(t *testing.T) {
	p, closeFunc := prepareNode(t)
	defer closeFunc()

	meeting := messagedata.CreateMeeting{
		Object:   messagedata.MeetingObject,
		Action:   messagedata.CreateAction,
		ID:       common.Hash("M", p.o.ID, "1635277700", "standup"),
		Name:     "standup",
		Creation: 1635277700,
		Start:    1635277800,
	}
	env, err := p.nr.Dispatcher().Seal(meeting)
	require.NoError(t, err)

	require.NoError(t, p.client.Publish(context.Background(), p.o.Channel().String(), env))

	{ // applied at once without witnesses
		page, err := p.client.LoadActions(context.Background(), p.o.ID)
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
		require.Equal(t, env.MessageID, page.Embedded.Records[0].MessageID)
		require.Equal(t, messagedata.MeetingObject, page.Embedded.Records[0].Object)
	}

	{
		messages, err := p.client.Catchup(context.Background(), p.o.Channel().String())
		require.NoError(t, err)
		require.Equal(t, 1, len(messages))
		require.Equal(t, env.MessageID, messages[0].MessageID)
	}

	{ // invalid channel
		err := p.client.Publish(context.Background(), "root/x", env)
		require.Error(t, err)
		e, ok := err.(QueryError)
		require.True(t, ok)
		require.Equal(t, int(errors.InvalidChannel.Code), e.Code)
	}
}

func TestClientConsensus(t *testing.T) {
	p, closeFunc := prepareNode(t)
	defer closeFunc()

	key := consensus.Key{Type: messagedata.RollCallObject, ID: common.Hash("rc"), Property: "state"}
	inst, err := p.nr.Consensus().Propose(context.Background(), p.o.ID, key, "closed", 1635277700)
	require.NoError(t, err)

	{
		page, err := p.client.LoadInstances(context.Background(), p.o.ID, Q{Key: QueryPhase, Value: "accepted"})
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
		require.Equal(t, inst.InstanceID, page.Embedded.Records[0].InstanceID)
	}

	{
		i, err := p.client.LoadInstance(context.Background(), p.o.ID, inst.InstanceID)
		require.NoError(t, err)
		require.Equal(t, consensus.PhaseAccepted, i.Phase)
		require.Equal(t, "closed", i.Value)
		require.Equal(t, 1, i.Accepted)
	}

	{
		n, err := p.client.LoadNode(context.Background(), p.o.ID, p.o.Organizer)
		require.NoError(t, err)
		require.Equal(t, string(lao.RoleOrganizer), n.Role)
		require.Equal(t, consensus.AcceptAccepted, n.Instances[inst.InstanceID])
	}

	{
		page, err := p.client.LoadNodes(context.Background(), p.o.ID)
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
	}
}

func TestClientWitnessMessages(t *testing.T) {
	p, closeFunc := prepareNode(t)
	defer closeFunc()

	messageID := common.Hash("action")
	_, err := p.nr.Witness().RegisterPendingAction(p.o.ID, messageID, "title", "description", nil, nil)
	require.NoError(t, err)

	page, err := p.client.LoadWitnessMessages(context.Background(), p.o.ID, Q{Key: QueryState, Value: "pending"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)

	m, err := p.client.LoadWitnessMessage(context.Background(), p.o.ID, messageID)
	require.NoError(t, err)
	require.Equal(t, "title", m.Title)
	require.Equal(t, "PENDING", m.State)
}

func TestClientSubscribe(t *testing.T) {
	p, closeFunc := prepareNode(t)
	defer closeFunc()

	ch := p.o.Channel().String()

	err := p.client.Unsubscribe(context.Background(), ch)
	e, ok := err.(QueryError)
	require.True(t, ok)
	require.Equal(t, int(errors.NotSubscribed.Code), e.Code)

	require.NoError(t, p.client.Subscribe(context.Background(), ch))
	require.NoError(t, p.client.Unsubscribe(context.Background(), ch))
}
