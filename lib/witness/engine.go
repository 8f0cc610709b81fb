package witness

import (
	"context"
	"sort"
	"sync"

	logging "github.com/inconshreveable/log15"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/common/observer"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/metrics"
	"github.com/laonet/laocoord/lib/store"
)

// Publisher is the local node: it signs message ids as a witness and
// publishes the acknowledgements.
type Publisher interface {
	keypair.Signer
	Seal(messagedata.Data) (message.Envelope, error)
	Publish(context.Context, channel.Channel, message.Envelope) error
}

type RecordStore interface {
	Save(kind, laoID, id string, v interface{}) error
	Walk(kind, laoID string, fn func(id string, decode func(interface{}) error) (bool, error)) error
}

// EnvelopeStore keeps the witness signatures next to the stored envelope
// they acknowledge.
type EnvelopeStore interface {
	AddWitnessSignature(laoID, messageID string, ws message.WitnessSignature) error
}

type laoState struct {
	sync.Mutex

	messages map[ /* MessageID */ string]*Message
	actions  map[ /* MessageID */ string]*PendingAction
}

func newLaoState() *laoState {
	return &laoState{
		messages: map[string]*Message{},
		actions:  map[string]*PendingAction{},
	}
}

type Engine struct {
	sync.RWMutex

	registry  *lao.Registry
	publisher Publisher
	policy    Policy
	records   RecordStore
	envelopes EnvelopeStore
	hub       *observer.Hub
	log       logging.Logger

	laos map[ /* lao id */ string]*laoState
}

// NewEngine makes an Engine; policy is used for the actions registered
// without one.
func NewEngine(registry *lao.Registry, publisher Publisher, policy Policy) *Engine {
	if policy == nil {
		policy = MajorityPolicy{}
	}

	return &Engine{
		registry:  registry,
		publisher: publisher,
		policy:    policy,
		hub:       observer.NewHub(observer.ResourceWitness),
		log:       log.New(logging.Ctx{"node": publisher.PublicKey()}),
		laos:      map[string]*laoState{},
	}
}

func (e *Engine) SetRecordStore(records RecordStore) {
	e.records = records
}

func (e *Engine) SetEnvelopeStore(envelopes EnvelopeStore) {
	e.envelopes = envelopes
}

func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) state(laoID string) *laoState {
	e.Lock()
	defer e.Unlock()

	st, found := e.laos[laoID]
	if !found {
		st = newLaoState()
		e.laos[laoID] = st
	}

	return st
}

func (e *Engine) existingState(laoID string) (*laoState, bool) {
	e.RLock()
	defer e.RUnlock()

	st, found := e.laos[laoID]
	return st, found
}

// RegisterPendingAction starts witnessing messageID. Registering the same
// message again returns the existing record and keeps the first callback.
func (e *Engine) RegisterPendingAction(
	laoID, messageID, title, description string,
	policy Policy, onQuorum func(Message),
) (Message, error) {
	return e.register(laoID, channel.NewLaoChannel(laoID), messageID, title, description, policy, onQuorum)
}

// RegisterWitnessed registers the witnessed payload d carried by env on ch.
func (e *Engine) RegisterWitnessed(
	laoID string, ch channel.Channel, env message.Envelope, d messagedata.Witnessed,
	onQuorum func(Message),
) (Message, error) {
	return e.register(laoID, ch, env.MessageID, d.Title(), d.Description(), nil, onQuorum)
}

func (e *Engine) register(
	laoID string, ch channel.Channel, messageID, title, description string,
	policy Policy, onQuorum func(Message),
) (Message, error) {
	if _, err := e.registry.Get(laoID); err != nil {
		return Message{}, err
	}
	if policy == nil {
		policy = e.policy
	}

	st := e.state(laoID)
	st.Lock()
	if m, found := st.messages[messageID]; found {
		snapshot := m.Clone()
		st.Unlock()
		return snapshot, nil
	}

	m := &Message{
		MessageID:   messageID,
		Channel:     ch,
		Title:       title,
		Description: description,
		Signatures:  []message.WitnessSignature{},
		State:       StatePending,
	}
	st.messages[messageID] = m
	st.actions[messageID] = &PendingAction{MessageID: messageID, Policy: policy, OnQuorum: onQuorum}
	snapshot := m.Clone()
	st.Unlock()

	metrics.Witness.AddPending(1)
	e.log.Debug("pending action registered", "lao", laoID, "message", messageID, "title", title, "policy", policy)

	e.persist(laoID, snapshot)
	e.hub.Trigger(laoID, Event{Type: EventRegistered, LaoID: laoID, Message: snapshot})

	return snapshot, nil
}

// AddSignature records the signature of witness over messageID. The
// callback of the pending action runs once, when the policy is first
// reached, with the signatures at that moment.
func (e *Engine) AddSignature(laoID, messageID, witness, signature string) (Message, error) {
	o, err := e.registry.Get(laoID)
	if err != nil {
		return Message{}, err
	}

	st, found := e.existingState(laoID)
	if found {
		st.Lock()
		_, found = st.messages[messageID]
		st.Unlock()
	}
	if !found {
		return Message{}, errors.UnknownWitnessMessage.Clone().SetData("message_id", messageID)
	}

	if !o.IsWitness(witness) {
		return Message{}, errors.UnauthorizedSender.Clone().
			SetData("sender", witness).
			SetData("reason", "not a witness")
	}

	ws := message.WitnessSignature{Witness: witness, Signature: signature}
	if err := message.VerifyWitnessSignature(messageID, ws); err != nil {
		return Message{}, err
	}

	var events []Event
	var onQuorum func(Message)

	st.Lock()
	m := st.messages[messageID]
	if m.HasSigned(witness) {
		snapshot := m.Clone()
		st.Unlock()
		return snapshot, nil
	}

	m.Signatures = append(m.Signatures, ws)
	metrics.Witness.AddSignature()
	events = append(events, Event{Type: EventSignatureAdded, LaoID: laoID, Witness: witness, Message: m.Clone()})

	action := st.actions[messageID]
	if m.State == StatePending && action.Policy.Reached(len(m.Signatures), len(o.Witnesses)) {
		m.State = StateQuorumReached
		if !m.Canceled {
			onQuorum = action.OnQuorum
			metrics.Witness.AddPending(-1)
		}
		delete(st.actions, messageID)
		metrics.Witness.AddQuorum()
		events = append(events, Event{Type: EventQuorumReached, LaoID: laoID, Witness: witness, Message: m.Clone()})
	}
	snapshot := m.Clone()
	st.Unlock()

	e.log.Debug(
		"signature added",
		"lao", laoID,
		"message", messageID,
		"witness", witness,
		"signatures", len(snapshot.Signatures),
		"state", snapshot.State,
	)

	e.persist(laoID, snapshot)
	if e.envelopes != nil {
		if err := e.envelopes.AddWitnessSignature(laoID, messageID, ws); err != nil {
			e.log.Debug("failed to fold witness signature into envelope", "message", messageID, "error", err)
		}
	}
	for _, ev := range events {
		e.hub.Trigger(laoID, ev)
	}

	if onQuorum != nil {
		onQuorum(snapshot)
	}

	return snapshot, nil
}

// CancelPendingAction drops the callback of messageID; the record and its
// signatures stay.
func (e *Engine) CancelPendingAction(laoID, messageID string) error {
	st, found := e.existingState(laoID)
	if !found {
		return errors.PendingActionNotFound.Clone().SetData("message_id", messageID)
	}

	st.Lock()
	m, found := st.messages[messageID]
	if !found || m.State != StatePending || m.Canceled {
		st.Unlock()
		return errors.PendingActionNotFound.Clone().SetData("message_id", messageID)
	}
	m.Canceled = true
	st.actions[messageID].OnQuorum = nil
	snapshot := m.Clone()
	st.Unlock()

	metrics.Witness.AddPending(-1)
	e.log.Debug("pending action canceled", "lao", laoID, "message", messageID)

	e.persist(laoID, snapshot)
	e.hub.Trigger(laoID, Event{Type: EventCanceled, LaoID: laoID, Message: snapshot})

	return nil
}

// Witness signs messageID as the local witness, publishes the
// acknowledgement on ch and records it.
func (e *Engine) Witness(ctx context.Context, laoID string, ch channel.Channel, messageID string) (Message, error) {
	o, err := e.registry.Get(laoID)
	if err != nil {
		return Message{}, err
	}
	if !o.IsWitness(e.publisher.PublicKey()) {
		return Message{}, errors.UnauthorizedSender.Clone().
			SetData("sender", e.publisher.PublicKey()).
			SetData("reason", "not a witness")
	}

	if _, err := e.Message(laoID, messageID); err != nil {
		return Message{}, err
	}

	ws, err := message.SignWitness(e.publisher, messageID)
	if err != nil {
		return Message{}, err
	}

	env, err := e.publisher.Seal(messagedata.NewWitnessMessage(messageID, ws.Signature))
	if err != nil {
		return Message{}, err
	}
	if err := e.publisher.Publish(ctx, ch, env); err != nil {
		return Message{}, errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", ch)
	}

	return e.AddSignature(laoID, messageID, ws.Witness, ws.Signature)
}

// OnWitness handles the acknowledgement of a witness received on ch.
func (e *Engine) OnWitness(_ context.Context, ch channel.Channel, env message.Envelope, wm messagedata.WitnessMessage) error {
	laoID := ch.LaoID()
	if len(laoID) < 1 {
		return errors.InvalidChannel.Clone().SetData("channel", ch)
	}

	_, err := e.AddSignature(laoID, wm.MessageID, env.Sender, wm.Signature)
	return err
}

func (e *Engine) persist(laoID string, m Message) {
	if e.records == nil {
		return
	}

	if err := e.records.Save(store.RecordKindWitnessMessage, laoID, m.MessageID, m); err != nil {
		e.log.Error("failed to save witness message", "lao", laoID, "message", m.MessageID, "error", err)
	}
}

// Restore loads the witness messages of laoID. Callbacks are not saved, so
// the restored pending messages use the default policy without a callback.
func (e *Engine) Restore(laoID string) error {
	if e.records == nil {
		return nil
	}

	st := e.state(laoID)

	return e.records.Walk(store.RecordKindWitnessMessage, laoID, func(id string, decode func(interface{}) error) (bool, error) {
		var m Message
		if err := decode(&m); err != nil {
			return false, err
		}
		if m.Signatures == nil {
			m.Signatures = []message.WitnessSignature{}
		}

		st.Lock()
		st.messages[m.MessageID] = &m
		if m.State == StatePending {
			st.actions[m.MessageID] = &PendingAction{MessageID: m.MessageID, Policy: e.policy}
		}
		st.Unlock()

		return true, nil
	})
}

func (e *Engine) Subscribe(laoID string, fn func(Event)) *observer.Subscription {
	return e.hub.Subscribe(laoID, fn)
}

func (e *Engine) Message(laoID, messageID string) (Message, error) {
	st, found := e.existingState(laoID)
	if found {
		st.Lock()
		defer st.Unlock()

		if m, found := st.messages[messageID]; found {
			return m.Clone(), nil
		}
	}

	return Message{}, errors.UnknownWitnessMessage.Clone().SetData("message_id", messageID)
}

// PendingActions returns the messages still waiting for quorum with an
// active callback, ordered by message id.
func (e *Engine) PendingActions(laoID string) []Message {
	return e.messages(laoID, func(m *Message) bool { return m.State == StatePending && !m.Canceled })
}

func (e *Engine) Messages(laoID string) []Message {
	return e.messages(laoID, func(*Message) bool { return true })
}

func (e *Engine) messages(laoID string, filter func(*Message) bool) []Message {
	st, found := e.existingState(laoID)
	if !found {
		return nil
	}

	st.Lock()
	var l []Message
	for _, m := range st.messages {
		if filter(m) {
			l = append(l, m.Clone())
		}
	}
	st.Unlock()

	sort.Slice(l, func(i, j int) bool { return l[i].MessageID < l[j].MessageID })

	return l
}
