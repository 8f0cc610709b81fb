package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/dispatcher"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/message/query"
	"github.com/laonet/laocoord/lib/node/runner/api/resource"
	"github.com/laonet/laocoord/lib/storage"
	"github.com/laonet/laocoord/lib/store"
	"github.com/laonet/laocoord/lib/witness"
)

type apiTestContext struct {
	o          lao.Organization
	signers    []*keypair.KeypairSigner
	network    *channel.MemoryNetwork
	dispatcher *dispatcher.Dispatcher
	consensus  *consensus.Engine
	witness    *witness.Engine
	actions    *lao.ActionLog
	ts         *httptest.Server
}

func prepareAPIServer(t *testing.T) (apiTestContext, func()) {
	o, signers := lao.NewTestOrganization("lao", 1)
	registry := lao.NewRegistry()
	require.NoError(t, registry.Add(o))

	st := storage.NewTestStorage()
	messages, err := store.NewLevelDBMessageStore(st, 100)
	require.NoError(t, err)

	var network *channel.MemoryNetwork
	network = network.NewMemoryNetwork()

	d := dispatcher.NewDispatcher(signers[0], network, messages, common.NewTestConfig())
	c := consensus.NewEngine(registry, d, nil)
	w := witness.NewEngine(registry, d, nil)
	actions := lao.NewActionLog()

	info := resource.NodeInfo{PublicKey: signers[0].PublicKey(), Version: "test", Endpoint: "memory://test"}
	api := NewNetworkHandlerAPI(registry, c, w, actions, d, info)

	router := mux.NewRouter()
	for pattern, methods := range api.Routes() {
		for method, handler := range methods {
			router.HandleFunc(pattern, handler).Methods(method)
		}
	}
	ts := httptest.NewServer(router)

	return apiTestContext{
			o:          o,
			signers:    signers,
			network:    network,
			dispatcher: d,
			consensus:  c,
			witness:    w,
			actions:    actions,
			ts:         ts,
		}, func() {
			ts.Close()
			d.Stop()
			st.Close()
		}
}

func (c apiTestContext) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	resp, err := http.Get(c.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m), string(b))

	return resp, m
}

func (c apiTestContext) post(t *testing.T, body []byte) (*http.Response, map[string]interface{}) {
	resp, err := http.Post(c.ts.URL+resource.URLQuery, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m), string(b))

	return resp, m
}

func selfLink(m map[string]interface{}) interface{} {
	return m["_links"].(map[string]interface{})["self"].(map[string]interface{})["href"]
}

func TestGetNodeInfoHandler(t *testing.T) {
	c, closeFunc := prepareAPIServer(t)
	defer closeFunc()

	resp, m := c.get(t, resource.URLNodeInfo)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/hal+json", resp.Header.Get("Content-Type"))
	require.Equal(t, c.signers[0].PublicKey(), m["public_key"])
	require.Equal(t, []interface{}{c.o.ID}, m["organizations"])
}

func TestGetLaoHandler(t *testing.T) {
	c, closeFunc := prepareAPIServer(t)
	defer closeFunc()

	{
		resp, m := c.get(t, resource.URLLaos)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, float64(1), m["count"])
	}

	{
		resp, m := c.get(t, resource.ReplaceURL(resource.URLLao, "id", c.o.ID))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, c.o.ID, m["id"])
		require.Equal(t, c.o.Name, m["name"])
	}

	{ // unknown organization
		resp, m := c.get(t, resource.ReplaceURL(resource.URLLao, "id", common.Hash("unknown")))
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
		require.Equal(t, errors.OrganizationNotFound.Message, m["title"])
	}
}

func TestGetInstancesHandler(t *testing.T) {
	c, closeFunc := prepareAPIServer(t)
	defer closeFunc()

	key := consensus.Key{Type: messagedata.RollCallObject, ID: common.Hash("rc"), Property: "state"}
	inst, err := c.consensus.Propose(context.Background(), c.o.ID, key, "closed", 1635277700)
	require.NoError(t, err)

	path := resource.ReplaceURL(resource.URLLaoInstances, "id", c.o.ID)
	{
		resp, m := c.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, float64(1), m["count"])
		require.Equal(t, path, selfLink(m))
	}

	{ // the witness did not answer yet
		_, m := c.get(t, path+"?phase=accepted")
		require.Equal(t, float64(0), m["count"])
	}

	{
		resp, _ := c.get(t, path+"?phase=unknown")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	{
		resp, m := c.get(t, resource.ReplaceURL(resource.URLLaoInstance, "id", c.o.ID, "instance", inst.InstanceID))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, inst.InstanceID, m["instance_id"])
	}

	{
		resp, _ := c.get(t, resource.ReplaceURL(resource.URLLaoInstance, "id", c.o.ID, "instance", common.Hash("unknown")))
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestGetNodesHandler(t *testing.T) {
	c, closeFunc := prepareAPIServer(t)
	defer closeFunc()

	{ // organizer and witness
		resp, m := c.get(t, resource.ReplaceURL(resource.URLLaoNodes, "id", c.o.ID))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, float64(2), m["count"])
	}

	{
		path := resource.ReplaceURL(resource.URLLaoNode, "id", c.o.ID, "node", c.signers[1].PublicKey())
		resp, m := c.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, c.signers[1].PublicKey(), m["public_key"])
	}

	{
		path := resource.ReplaceURL(resource.URLLaoNode, "id", c.o.ID, "node", keypair.Random().Address())
		resp, _ := c.get(t, path)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestGetWitnessMessagesHandler(t *testing.T) {
	c, closeFunc := prepareAPIServer(t)
	defer closeFunc()

	messageID := common.Hash("action")
	_, err := c.witness.RegisterPendingAction(c.o.ID, messageID, "meeting", "create", nil, nil)
	require.NoError(t, err)

	path := resource.ReplaceURL(resource.URLLaoWitnessMessages, "id", c.o.ID)
	{
		resp, m := c.get(t, path+"?state=pending")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, float64(1), m["count"])
	}

	{
		resp, _ := c.get(t, path+"?state=unknown")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	{
		resp, m := c.get(t, resource.ReplaceURL(resource.URLLaoWitnessMessage, "id", c.o.ID, "message", messageID))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, messageID, m["message_id"])
	}

	{
		resp, m := c.get(t, resource.ReplaceURL(resource.URLLaoWitnessMessage, "id", c.o.ID, "message", common.Hash("unknown")))
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, errors.UnknownWitnessMessage.Message, m["title"])
	}
}

func TestGetActionsHandler(t *testing.T) {
	c, closeFunc := prepareAPIServer(t)
	defer closeFunc()

	added, err := c.actions.Add(c.o.ID, lao.Action{
		MessageID: common.Hash("action"),
		Object:    messagedata.MeetingObject,
		Action:    messagedata.CreateAction,
		Sender:    c.o.Organizer,
		Applied:   1635277800,
	})
	require.NoError(t, err)
	require.True(t, added)

	resp, m := c.get(t, resource.ReplaceURL(resource.URLLaoActions, "id", c.o.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), m["count"])
}

func testMeetingEnvelope(t *testing.T, signer keypair.Signer, laoID, name string) message.Envelope {
	m := messagedata.CreateMeeting{
		Object:   messagedata.MeetingObject,
		Action:   messagedata.CreateAction,
		ID:       common.Hash("M", laoID, "1635277700", name),
		Name:     name,
		Creation: 1635277700,
		Start:    1635277800,
	}
	b, err := messagedata.Marshal(m)
	require.NoError(t, err)
	env, err := message.Seal(signer, b)
	require.NoError(t, err)

	return env
}

func TestPostQueryHandler(t *testing.T) {
	c, closeFunc := prepareAPIServer(t)
	defer closeFunc()

	var handled []string
	c.dispatcher.Register(
		messagedata.MeetingObject, messagedata.CreateAction,
		func(_ context.Context, _ channel.Channel, env message.Envelope, _ messagedata.Data) error {
			handled = append(handled, env.MessageID)
			return nil
		},
	)

	ch := c.o.Channel()

	{ // not a query
		resp, m := c.post(t, []byte(`{"jsonrpc": "1.0"}`))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, errors.InvalidEnvelope.Message, m["title"])
	}

	env := testMeetingEnvelope(t, c.signers[0], c.o.ID, "standup")
	{
		resp, m := c.post(t, common.MustMarshalJSON(query.NewPublish(1, ch.String(), env)))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, float64(1), m["id"])
		require.Equal(t, float64(0), m["result"])
		require.Nil(t, m["error"])
		require.Equal(t, []string{env.MessageID}, handled)
	}

	{ // the published message is in the history of the channel
		_, m := c.post(t, common.MustMarshalJSON(query.NewCatchup(2, ch.String())))
		result := m["result"].([]interface{})
		require.Equal(t, 1, len(result))
		require.Equal(t, env.MessageID, result[0].(map[string]interface{})["message_id"])
	}

	{ // invalid message is answered with its error
		bad := testMeetingEnvelope(t, c.signers[0], c.o.ID, "retro")
		bad.Signature = ""
		resp, m := c.post(t, common.MustMarshalJSON(query.NewPublish(3, ch.String(), bad)))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		answerError := m["error"].(map[string]interface{})
		require.Equal(t, float64(errors.InvalidEnvelope.Code), answerError["code"])
	}

	{ // invalid channel
		_, m := c.post(t, common.MustMarshalJSON(query.NewPublish(4, "root/x", env)))
		answerError := m["error"].(map[string]interface{})
		require.Equal(t, float64(errors.InvalidChannel.Code), answerError["code"])
	}

	{
		unsubscribe := query.Unsubscribe{
			Base:   query.Base{JSONRPC: query.JSONRPCVersion, Method: query.MethodUnsubscribe},
			ID:     5,
			Params: query.ChannelParams{Channel: ch.String()},
		}
		_, m := c.post(t, common.MustMarshalJSON(unsubscribe))
		answerError := m["error"].(map[string]interface{})
		require.Equal(t, float64(errors.NotSubscribed.Code), answerError["code"])
	}
}
