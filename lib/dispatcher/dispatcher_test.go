package dispatcher

import (
	"context"
	"sync"
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

var testChannel = channel.NewLaoChannel(common.Hash("lao"))

type testHandler struct {
	sync.Mutex

	handled []string
	signal  chan string
}

func newTestHandler() *testHandler {
	return &testHandler{signal: make(chan string, 100)}
}

func (h *testHandler) handle(_ context.Context, _ channel.Channel, env message.Envelope, _ messagedata.Data) error {
	h.Lock()
	h.handled = append(h.handled, env.MessageID)
	h.Unlock()

	h.signal <- env.MessageID
	return nil
}

func (h *testHandler) Handled() []string {
	h.Lock()
	defer h.Unlock()

	return append([]string{}, h.handled...)
}

func (h *testHandler) wait(t *testing.T, messageID string) {
	select {
	case id := <-h.signal:
		require.Equal(t, messageID, id)
	case <-time.After(5 * time.Second):
		require.Fail(t, "message was not handled", messageID)
	}
}

func newTestDispatcher(t *testing.T, network channel.Transport) (*Dispatcher, *testHandler, func()) {
	st := storage.NewTestStorage()
	messages, err := store.NewLevelDBMessageStore(st, 100)
	require.NoError(t, err)

	conf := common.NewTestConfig()
	d := NewDispatcher(keypair.RandomSigner(), network, messages, conf)

	h := newTestHandler()
	d.Register(messagedata.MeetingObject, messagedata.CreateAction, h.handle)

	return d, h, func() {
		d.Stop()
		st.Close()
	}
}

func testMeeting(name string) messagedata.CreateMeeting {
	laoID := testChannel.LaoID()
	return messagedata.CreateMeeting{
		Object:   messagedata.MeetingObject,
		Action:   messagedata.CreateAction,
		ID:       common.Hash("M", laoID, "1635277700", name),
		Name:     name,
		Creation: 1635277700,
		Start:    1635277800,
	}
}

func sealTest(t *testing.T, signer keypair.Signer, d messagedata.Data) message.Envelope {
	b, err := messagedata.Marshal(d)
	require.NoError(t, err)
	env, err := message.Seal(signer, b)
	require.NoError(t, err)
	return env
}

func errorCode(t *testing.T, err error) uint {
	require.Error(t, err)
	e, ok := err.(*errors.Error)
	require.True(t, ok, "unexpected error: %v", err)
	return e.Code
}

func TestHandleIncoming(t *testing.T) {
	var network *channel.MemoryNetwork
	d, h, closeFunc := newTestDispatcher(t, network.NewMemoryNetwork())
	defer closeFunc()

	env := sealTest(t, keypair.RandomSigner(), testMeeting("standup"))

	require.NoError(t, d.HandleIncoming(context.Background(), testChannel, env))
	require.Equal(t, []string{env.MessageID}, h.Handled())

	// re-delivery is not applied again
	require.NoError(t, d.HandleIncoming(context.Background(), testChannel, env))
	require.Equal(t, []string{env.MessageID}, h.Handled())
}

func TestHandleSerial(t *testing.T) {
	var network *channel.MemoryNetwork
	d, h, closeFunc := newTestDispatcher(t, network.NewMemoryNetwork())
	defer closeFunc()

	signer := keypair.RandomSigner()
	env := sealTest(t, signer, testMeeting("standup"))

	require.NoError(t, d.HandleSerial(context.Background(), testChannel, env))
	require.Equal(t, []string{env.MessageID}, h.Handled())

	// duplicates are not an error
	require.NoError(t, d.HandleSerial(context.Background(), testChannel, env))

	bad := sealTest(t, signer, testMeeting("retro"))
	bad.Signature = ""
	err := d.HandleSerial(context.Background(), testChannel, bad)
	require.Equal(t, errors.InvalidEnvelope.Code, errorCode(t, err))
	require.Equal(t, 1, len(h.Handled()))
}

func TestHandleIncomingInvalid(t *testing.T) {
	var network *channel.MemoryNetwork
	d, h, closeFunc := newTestDispatcher(t, network.NewMemoryNetwork())
	defer closeFunc()

	signer := keypair.RandomSigner()

	{ // signed by another key
		env := sealTest(t, signer, testMeeting("a"))
		env.Sender = keypair.Random().Address()
		err := d.HandleIncoming(context.Background(), testChannel, env)
		require.Equal(t, errors.UnauthorizedSender.Code, errorCode(t, err))
	}

	{ // unsigned
		env := sealTest(t, signer, testMeeting("b"))
		env.Signature = ""
		err := d.HandleIncoming(context.Background(), testChannel, env)
		require.Equal(t, errors.InvalidEnvelope.Code, errorCode(t, err))
	}

	{ // message id does not match
		env := sealTest(t, signer, testMeeting("c"))
		env.MessageID = common.Hash("other")
		err := d.HandleIncoming(context.Background(), testChannel, env)
		require.Equal(t, errors.InvalidMessageID.Code, errorCode(t, err))
	}

	{ // invalid payload
		m := testMeeting("d")
		m.Start = 0
		err := d.HandleIncoming(context.Background(), testChannel, sealTest(t, signer, m))
		require.Equal(t, errors.InvalidMessageData.Code, errorCode(t, err))
	}

	{ // invalid channel
		err := d.HandleIncoming(context.Background(), "root/x", sealTest(t, signer, testMeeting("e")))
		require.Equal(t, errors.InvalidChannel.Code, errorCode(t, err))
	}

	require.Equal(t, 0, len(h.Handled()))
}

func TestHandleIncomingUnroutable(t *testing.T) {
	var network *channel.MemoryNetwork
	d, h, closeFunc := newTestDispatcher(t, network.NewMemoryNetwork())
	defer closeFunc()

	signer := keypair.RandomSigner()

	// unknown payload
	env, err := message.SealData(signer, map[string]string{"object": "unknown", "action": "create"})
	require.NoError(t, err)
	err = d.HandleIncoming(context.Background(), testChannel, env)
	require.Equal(t, errors.UnsupportedMessageType.Code, errorCode(t, err))

	// known payload without handler
	wm := messagedata.NewWitnessMessage(common.Hash("m"), common.EncodeBase64([]byte("signature")))
	env = sealTest(t, signer, wm)
	err = d.HandleIncoming(context.Background(), testChannel, env)
	require.Equal(t, errors.UnsupportedMessageType.Code, errorCode(t, err))

	// dropped messages are not marked as handled
	found, err := d.messages.Has(testChannel.LaoID(), env.MessageID)
	require.NoError(t, err)
	require.False(t, found)

	require.Equal(t, 0, len(h.Handled()))
}

func TestPublishSigned(t *testing.T) {
	var network *channel.MemoryNetwork
	network = network.NewMemoryNetwork()
	other := network.NewMemoryNetwork()

	d, h, closeFunc := newTestDispatcher(t, network)
	defer closeFunc()
	od, oh, oCloseFunc := newTestDispatcher(t, other)
	defer oCloseFunc()

	for _, n := range []*channel.MemoryNetwork{network, other} {
		go n.Start()
		defer n.Stop()
	}
	go d.Start()
	go od.Start()

	require.NoError(t, d.Subscribe(context.Background(), testChannel))
	require.NoError(t, od.Subscribe(context.Background(), testChannel))

	messageID, err := d.PublishSigned(context.Background(), testChannel, testMeeting("standup"))
	require.NoError(t, err)

	oh.wait(t, messageID)

	// the local node does not handle its own message again
	result := <-d.PublishSignedAsync(context.Background(), testChannel, testMeeting("retro"))
	require.NoError(t, result.Err)
	oh.wait(t, result.MessageID)

	d.Wait()
	require.Equal(t, 0, len(h.Handled()))
	require.Equal(t, []string{messageID, result.MessageID}, oh.Handled())
}

func TestForward(t *testing.T) {
	var network *channel.MemoryNetwork
	network = network.NewMemoryNetwork()
	other := network.NewMemoryNetwork()

	d, h, closeFunc := newTestDispatcher(t, network)
	defer closeFunc()
	_, oh, oCloseFunc := newTestDispatcher(t, other)
	defer oCloseFunc()

	env := sealTest(t, keypair.RandomSigner(), testMeeting("standup"))

	require.NoError(t, d.Forward(context.Background(), testChannel, env))
	require.Equal(t, []string{env.MessageID}, h.Handled())

	messages, err := d.History(context.Background(), testChannel)
	require.NoError(t, err)
	require.Equal(t, 1, len(messages))
	require.Equal(t, env.MessageID, messages[0].MessageID)

	// rejected envelopes are not published
	bad := sealTest(t, keypair.RandomSigner(), testMeeting("retro"))
	bad.MessageID = common.Hash("other")
	err = d.Forward(context.Background(), testChannel, bad)
	require.Equal(t, errors.InvalidMessageID.Code, errorCode(t, err))

	messages, err = d.History(context.Background(), testChannel)
	require.NoError(t, err)
	require.Equal(t, 1, len(messages))
	require.Equal(t, 0, len(oh.Handled()))
}

func TestPublishUnavailable(t *testing.T) {
	var network *channel.MemoryNetwork
	network = network.NewMemoryNetwork()
	network.SetUnavailable(true)

	d, _, closeFunc := newTestDispatcher(t, network)
	defer closeFunc()

	_, err := d.PublishSigned(context.Background(), testChannel, testMeeting("standup"))
	require.Equal(t, errors.ChannelUnavailable.Code, errorCode(t, err))

	result := <-d.PublishSignedAsync(context.Background(), testChannel, testMeeting("retro"))
	require.Equal(t, errors.ChannelUnavailable.Code, errorCode(t, result.Err))

	err = d.CatchupAndReplay(context.Background(), testChannel)
	require.Equal(t, errors.ChannelUnavailable.Code, errorCode(t, err))
}

func TestCatchupAndReplay(t *testing.T) {
	var network *channel.MemoryNetwork
	network = network.NewMemoryNetwork()
	other := network.NewMemoryNetwork()

	publisher := keypair.RandomSigner()

	var envelopes []message.Envelope
	for _, name := range []string{"a", "b", "c"} {
		env := sealTest(t, publisher, testMeeting(name))
		require.NoError(t, network.Publish(context.Background(), testChannel, env))
		envelopes = append(envelopes, env)
	}

	d, h, closeFunc := newTestDispatcher(t, other)
	defer closeFunc()

	go other.Start()
	defer other.Stop()
	go d.Start()

	require.NoError(t, d.Subscribe(context.Background(), testChannel))
	require.NoError(t, d.CatchupAndReplay(context.Background(), testChannel))

	for _, env := range envelopes {
		h.wait(t, env.MessageID)
	}

	// a live duplicate of the history, then a new message
	require.NoError(t, network.Publish(context.Background(), testChannel, envelopes[1]))
	last := sealTest(t, publisher, testMeeting("d"))
	require.NoError(t, network.Publish(context.Background(), testChannel, last))

	h.wait(t, last.MessageID)
	require.Equal(t, []string{
		envelopes[0].MessageID,
		envelopes[1].MessageID,
		envelopes[2].MessageID,
		last.MessageID,
	}, h.Handled())

	// catching up again changes nothing
	require.NoError(t, d.CatchupAndReplay(context.Background(), testChannel))
	d.Wait()
	require.Equal(t, 4, len(h.Handled()))
}

func TestCatchupBuffersLiveDeliveries(t *testing.T) {
	var network *channel.MemoryNetwork
	d, h, closeFunc := newTestDispatcher(t, network.NewMemoryNetwork())
	defer closeFunc()

	signer := keypair.RandomSigner()
	first := sealTest(t, signer, testMeeting("first"))
	live := sealTest(t, signer, testMeeting("live"))

	d.beginCatchup(testChannel)
	d.route(context.Background(), channel.Delivery{Channel: testChannel, Message: live})
	d.route(context.Background(), channel.Delivery{Channel: testChannel, Message: first})

	d.Wait()
	require.Equal(t, 0, len(h.Handled()))

	// the history is handled before the buffer
	require.NoError(t, d.HandleIncoming(context.Background(), testChannel, first))
	d.endCatchup(context.Background(), testChannel)
	d.Wait()

	require.Equal(t, []string{first.MessageID, live.MessageID}, h.Handled())
}

// hookTransport runs the hooks of the tests while the dispatcher subscribes
// and catches up.
type hookTransport struct {
	*channel.MemoryNetwork

	sync.Mutex
	catchups    int
	onSubscribe func()
	onCatchup   func(n int)
}

func (t *hookTransport) Subscribe(ctx context.Context, ch channel.Channel) error {
	if err := t.MemoryNetwork.Subscribe(ctx, ch); err != nil {
		return err
	}
	if t.onSubscribe != nil {
		t.onSubscribe()
	}

	return nil
}

func (t *hookTransport) Catchup(ctx context.Context, ch channel.Channel) ([]message.Envelope, error) {
	messages, err := t.MemoryNetwork.Catchup(ctx, ch)

	t.Lock()
	t.catchups++
	n := t.catchups
	t.Unlock()

	if t.onCatchup != nil {
		t.onCatchup(n)
	}

	return messages, err
}

func (t *hookTransport) Catchups() int {
	t.Lock()
	defer t.Unlock()

	return t.catchups
}

func TestCatchupBufferLimit(t *testing.T) {
	var network *channel.MemoryNetwork
	transport := &hookTransport{MemoryNetwork: network.NewMemoryNetwork()}

	d, h, closeFunc := newTestDispatcher(t, transport)
	defer closeFunc()
	d.conf.CatchupBufferLimit = 2

	signer := keypair.RandomSigner()
	first := sealTest(t, signer, testMeeting("first"))
	require.NoError(t, transport.Publish(context.Background(), testChannel, first))

	var live []message.Envelope
	for _, name := range []string{"a", "b", "c"} {
		live = append(live, sealTest(t, signer, testMeeting(name)))
	}

	// more live deliveries than the buffer holds arrive after the history
	// was fetched
	transport.onCatchup = func(n int) {
		if n != 1 {
			return
		}
		for _, env := range live {
			require.NoError(t, transport.Publish(context.Background(), testChannel, env))
			d.route(context.Background(), channel.Delivery{Channel: testChannel, Message: env})
		}
	}

	require.NoError(t, d.CatchupAndReplay(context.Background(), testChannel))
	d.Wait()

	require.Equal(t, 2, transport.Catchups())
	require.Equal(t, []string{
		first.MessageID,
		live[0].MessageID,
		live[1].MessageID,
		live[2].MessageID,
	}, h.Handled())
}

func TestCatchupBufferUnderLimit(t *testing.T) {
	var network *channel.MemoryNetwork
	transport := &hookTransport{MemoryNetwork: network.NewMemoryNetwork()}

	d, h, closeFunc := newTestDispatcher(t, transport)
	defer closeFunc()
	d.conf.CatchupBufferLimit = 2

	signer := keypair.RandomSigner()
	first := sealTest(t, signer, testMeeting("first"))
	require.NoError(t, transport.Publish(context.Background(), testChannel, first))

	live := sealTest(t, signer, testMeeting("live"))
	transport.onCatchup = func(int) {
		d.route(context.Background(), channel.Delivery{Channel: testChannel, Message: live})
	}

	require.NoError(t, d.CatchupAndReplay(context.Background(), testChannel))
	d.Wait()

	require.Equal(t, 1, transport.Catchups())
	require.Equal(t, []string{first.MessageID, live.MessageID}, h.Handled())
}

func TestJoinBuffersFromSubscription(t *testing.T) {
	var network *channel.MemoryNetwork
	transport := &hookTransport{MemoryNetwork: network.NewMemoryNetwork()}

	d, h, closeFunc := newTestDispatcher(t, transport)
	defer closeFunc()

	signer := keypair.RandomSigner()
	first := sealTest(t, signer, testMeeting("first"))
	require.NoError(t, transport.Publish(context.Background(), testChannel, first))

	// delivered between the subscription and the catchup
	live := sealTest(t, signer, testMeeting("live"))
	transport.onSubscribe = func() {
		d.route(context.Background(), channel.Delivery{Channel: testChannel, Message: live})
	}

	require.NoError(t, d.Join(context.Background(), testChannel))
	d.Wait()

	require.True(t, transport.IsSubscribed(testChannel))
	require.Equal(t, []string{first.MessageID, live.MessageID}, h.Handled())
}

func TestPublishFailureUnmarks(t *testing.T) {
	var network *channel.MemoryNetwork
	network = network.NewMemoryNetwork()
	network.SetUnavailable(true)

	d, _, closeFunc := newTestDispatcher(t, network)
	defer closeFunc()

	env, err := d.Seal(testMeeting("standup"))
	require.NoError(t, err)

	err = d.Publish(context.Background(), testChannel, env)
	require.Equal(t, errors.ChannelUnavailable.Code, errorCode(t, err))

	has, err := d.messages.Has(testChannel.LaoID(), env.MessageID)
	require.NoError(t, err)
	require.False(t, has)

	network.SetUnavailable(false)
	require.NoError(t, d.Publish(context.Background(), testChannel, env))

	has, err = d.messages.Has(testChannel.LaoID(), env.MessageID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestHandleIncomingOutOfOrder(t *testing.T) {
	o, signers := lao.NewTestOrganization("lao", 2)
	registry := lao.NewRegistry()
	require.NoError(t, registry.Add(o))

	engine := consensus.NewEngine(registry, consensus.NewTestPublisher(signers[1]), nil)

	st := storage.NewTestStorage()
	defer st.Close()
	messages, err := store.NewLevelDBMessageStore(st, 100)
	require.NoError(t, err)

	var network *channel.MemoryNetwork
	d := NewDispatcher(signers[1], network.NewMemoryNetwork(), messages, common.NewTestConfig())
	defer d.Stop()

	d.Register(messagedata.ConsensusObject, messagedata.ElectAction, func(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error {
		return engine.OnElect(ctx, ch, env, data.(messagedata.Elect))
	})
	d.Register(messagedata.ConsensusObject, messagedata.ElectAcceptAction, func(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error {
		return engine.OnElectAccept(ctx, ch, env, data.(messagedata.ElectAccept))
	})

	ch := o.ConsensusChannel()
	key := messagedata.ConsensusKey{Type: messagedata.RollCallObject, ID: common.Hash("rc"), Property: "state"}
	elect := messagedata.NewElect(key, "closed", 1635277700)
	electEnv := sealTest(t, signers[0], elect)

	ea := messagedata.NewElectAccept(elect.InstanceID, electEnv.MessageID, true)
	eaEnv := sealTest(t, signers[2], ea)

	// the answer comes before the elect
	err = d.HandleIncoming(context.Background(), ch, eaEnv)
	require.Equal(t, errors.UnknownConsensusInstance.Code, errorCode(t, err))

	has, err := messages.Has(o.ID, eaEnv.MessageID)
	require.NoError(t, err)
	require.False(t, has)

	// the parked answer is applied after the elect
	require.NoError(t, d.HandleIncoming(context.Background(), ch, electEnv))

	inst, err := engine.Instance(o.ID, elect.InstanceID)
	require.NoError(t, err)
	require.Equal(t, consensus.AcceptAccepted, inst.AcceptorsState[signers[2].PublicKey()])

	has, err = messages.Has(o.ID, eaEnv.MessageID)
	require.NoError(t, err)
	require.True(t, has)

	// replayed by a catchup, it is a duplicate
	require.NoError(t, d.HandleIncoming(context.Background(), ch, eaEnv))

	inst, err = engine.Instance(o.ID, elect.InstanceID)
	require.NoError(t, err)
	require.Equal(t, consensus.AcceptAccepted, inst.AcceptorsState[signers[2].PublicKey()])
	require.Nil(t, inst.LateResponses)
}
