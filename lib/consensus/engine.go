package consensus

import (
	"context"
	"sort"
	"sync"
	"time"

	logging "github.com/inconshreveable/log15"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/observer"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/metrics"
	"github.com/laonet/laocoord/lib/store"
)

// Publisher signs the payloads of the local node and sends them. The
// envelopes given to Publish are marked as handled, so their echo from the
// transport is not applied twice.
type Publisher interface {
	PublicKey() string
	Seal(messagedata.Data) (message.Envelope, error)
	Publish(context.Context, channel.Channel, message.Envelope) error
}

type RecordStore interface {
	Save(kind, laoID, id string, v interface{}) error
	Walk(kind, laoID string, fn func(id string, decode func(interface{}) error) (bool, error)) error
}

type laoState struct {
	sync.Mutex

	instances   map[ /* InstanceID */ string]*ElectInstance
	byMessageID map[ /* Elect MessageID */ string]string
	nodes       map[ /* public key */ string]*Node
	responded   map[ /* InstanceID */ string]bool
}

func newLaoState() *laoState {
	return &laoState{
		instances:   map[string]*ElectInstance{},
		byMessageID: map[string]string{},
		nodes:       map[string]*Node{},
		responded:   map[string]bool{},
	}
}

func (st *laoState) syncNodes(o lao.Organization) {
	for _, a := range o.Acceptors() {
		role, _ := o.Role(a)
		if n, found := st.nodes[a]; found {
			n.Role = role
			continue
		}
		st.nodes[a] = &Node{PublicKey: a, Role: role, Instances: map[string]AcceptState{}}
	}
}

func (st *laoState) setNodeState(publicKey, instanceID string, state AcceptState) {
	n, found := st.nodes[publicKey]
	if !found {
		return
	}
	n.Instances[instanceID] = state
}

func (st *laoState) add(inst *ElectInstance) {
	st.instances[inst.InstanceID] = inst
	st.byMessageID[inst.MessageID] = inst.InstanceID
	for a, s := range inst.AcceptorsState {
		st.setNodeState(a, inst.InstanceID, s)
	}
}

func (st *laoState) remove(inst *ElectInstance) {
	delete(st.instances, inst.InstanceID)
	for m, id := range st.byMessageID {
		if id == inst.InstanceID {
			delete(st.byMessageID, m)
		}
	}
	for _, n := range st.nodes {
		delete(n.Instances, inst.InstanceID)
	}
	delete(st.responded, inst.InstanceID)
}

func (st *laoState) resolve(messageID, instanceID string) (*ElectInstance, error) {
	id, found := st.byMessageID[messageID]
	if !found || (len(instanceID) > 0 && id != instanceID) {
		return nil, errors.UnknownConsensusInstance.Clone().
			SetData("message_id", messageID).
			SetData("instance_id", instanceID)
	}

	return st.instances[id], nil
}

// Engine runs the elections of every organization of the registry. The
// state of an organization is guarded by its own lock; events, callbacks
// and publishing happen after the lock is released.
type Engine struct {
	sync.RWMutex

	registry  *lao.Registry
	publisher Publisher
	policy    AcceptPolicy
	records   RecordStore
	clock     common.Clock
	hub       *observer.Hub
	log       logging.Logger
	onDecided func(string, ElectInstance)

	laos map[ /* lao id */ string]*laoState
}

func NewEngine(registry *lao.Registry, publisher Publisher, policy AcceptPolicy) *Engine {
	if policy == nil {
		policy = DefaultAcceptPolicy
	}

	return &Engine{
		registry:  registry,
		publisher: publisher,
		policy:    policy,
		clock:     common.SystemClock{},
		hub:       observer.NewHub(observer.ResourceConsensus),
		log:       log.New(logging.Ctx{"node": publisher.PublicKey()}),
		laos:      map[string]*laoState{},
	}
}

func (e *Engine) SetRecordStore(records RecordStore) {
	e.records = records
}

func (e *Engine) SetClock(clock common.Clock) {
	e.clock = clock
}

// SetOnDecided sets the callback called once for every instance reaching
// ACCEPTED, with the decided instance.
func (e *Engine) SetOnDecided(fn func(laoID string, instance ElectInstance)) {
	e.onDecided = fn
}

func (e *Engine) state(o lao.Organization) *laoState {
	e.Lock()
	defer e.Unlock()

	st, found := e.laos[o.ID]
	if !found {
		st = newLaoState()
		e.laos[o.ID] = st
	}

	st.Lock()
	st.syncNodes(o)
	st.Unlock()

	return st
}

func (e *Engine) existingState(laoID string) (*laoState, bool) {
	e.RLock()
	defer e.RUnlock()

	st, found := e.laos[laoID]
	return st, found
}

func (e *Engine) organizationOf(ch channel.Channel) (lao.Organization, error) {
	o, err := e.registry.GetByChannel(ch)
	if err != nil {
		return o, err
	}
	if ch != o.ConsensusChannel() {
		return o, errors.InvalidChannel.Clone().SetData("channel", ch)
	}

	return o, nil
}

// Propose publishes an Elect for value and starts the instance. Nothing is
// kept when the Elect can not be published.
func (e *Engine) Propose(ctx context.Context, laoID string, key Key, value string, creation int64) (ElectInstance, error) {
	o, err := e.registry.Get(laoID)
	if err != nil {
		return ElectInstance{}, err
	}

	me := e.publisher.PublicKey()
	if !o.IsAcceptor(me) {
		return ElectInstance{}, errors.UnauthorizedSender.Clone().SetData("sender", me)
	}

	elect := messagedata.NewElect(key, value, creation)
	if err := elect.Verify(); err != nil {
		return ElectInstance{}, err
	}

	env, err := e.publisher.Seal(elect)
	if err != nil {
		return ElectInstance{}, err
	}

	st := e.state(o)
	st.Lock()
	if _, found := st.instances[elect.InstanceID]; found {
		st.Unlock()
		return ElectInstance{}, errors.ConsensusInstanceDuplicate.Clone().SetData("instance_id", elect.InstanceID)
	}
	inst := newElectInstance(o, me, env.MessageID, elect)
	st.add(inst)
	st.Unlock()

	if err := e.publisher.Publish(ctx, o.ConsensusChannel(), env); err != nil {
		st.Lock()
		st.remove(inst)
		st.Unlock()

		e.log.Debug("failed to publish elect", "instance", elect.InstanceID, "error", err)
		return ElectInstance{}, errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", o.ConsensusChannel())
	}

	snapshot := e.created(o.ID, me, st, inst)
	e.log.Debug("proposed", "lao", o.ID, "instance", inst.InstanceID, "key", key, "value", value)

	if err := e.answer(ctx, o, st, inst.InstanceID); err != nil {
		e.log.Error("failed to answer own elect", "instance", inst.InstanceID, "error", err)
	}

	if latest, err := e.Instance(o.ID, inst.InstanceID); err == nil {
		return latest, nil
	}

	return snapshot, nil
}

func (e *Engine) created(laoID, sender string, st *laoState, inst *ElectInstance) ElectInstance {
	st.Lock()
	snapshot := inst.Clone()
	st.Unlock()

	metrics.Consensus.AddInstance()
	e.persist(laoID, snapshot)
	e.hub.Trigger(laoID, Event{Type: EventCreated, LaoID: laoID, Sender: sender, Instance: snapshot})

	return snapshot
}

// OnElect handles an Elect received on ch. The instance is created once by
// InstanceID; the local node answers if it is an acceptor of the
// organization and did not answer yet.
func (e *Engine) OnElect(ctx context.Context, ch channel.Channel, env message.Envelope, elect messagedata.Elect) error {
	o, err := e.organizationOf(ch)
	if err != nil {
		return err
	}
	if !o.IsAcceptor(env.Sender) {
		return errors.UnauthorizedSender.Clone().SetData("sender", env.Sender)
	}

	st := e.state(o)
	st.Lock()
	inst, found := st.instances[elect.InstanceID]
	if found {
		if _, aliased := st.byMessageID[env.MessageID]; !aliased {
			st.byMessageID[env.MessageID] = inst.InstanceID
		}
	} else {
		inst = newElectInstance(o, env.Sender, env.MessageID, elect)
		st.add(inst)
	}
	st.Unlock()

	if !found {
		e.created(o.ID, env.Sender, st, inst)
		e.log.Debug("elect received", "lao", o.ID, "instance", inst.InstanceID, "proposer", env.Sender)
	}

	if !o.IsAcceptor(e.publisher.PublicKey()) {
		return nil
	}

	return e.answer(ctx, o, st, elect.InstanceID)
}

// answer publishes the ElectAccept of the local node once per instance and
// records it.
func (e *Engine) answer(ctx context.Context, o lao.Organization, st *laoState, instanceID string) error {
	me := e.publisher.PublicKey()

	st.Lock()
	inst, found := st.instances[instanceID]
	if !found || st.responded[instanceID] || inst.Phase.IsTerminal() {
		st.Unlock()
		return nil
	}
	if _, eligible := inst.AcceptorsState[me]; !eligible {
		st.Unlock()
		return nil
	}

	snapshot := inst.Clone()
	var others []ElectInstance
	for _, i := range st.instances {
		if i.InstanceID != instanceID && i.Key == inst.Key {
			others = append(others, i.Clone())
		}
	}
	st.responded[instanceID] = true
	st.Unlock()

	accept := e.policy.Accept(o.ID, snapshot, others)
	ea := messagedata.NewElectAccept(snapshot.InstanceID, snapshot.MessageID, accept)

	env, err := e.publisher.Seal(ea)
	if err == nil {
		err = e.publisher.Publish(ctx, o.ConsensusChannel(), env)
	}
	if err != nil {
		st.Lock()
		delete(st.responded, instanceID)
		st.Unlock()

		return errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", o.ConsensusChannel())
	}

	e.log.Debug("answered", "lao", o.ID, "instance", instanceID, "accept", accept)

	return e.record(ctx, o, st, me, env.MessageID, snapshot.MessageID, snapshot.InstanceID, acceptStateOf(accept))
}

// OnElectAccept records the answer of an acceptor to the Elect it refers.
func (e *Engine) OnElectAccept(ctx context.Context, ch channel.Channel, env message.Envelope, ea messagedata.ElectAccept) error {
	o, err := e.organizationOf(ch)
	if err != nil {
		return err
	}

	return e.record(ctx, o, e.state(o), env.Sender, env.MessageID, ea.MessageID, ea.InstanceID, acceptStateOf(ea.Accept))
}

func (e *Engine) record(
	ctx context.Context, o lao.Organization, st *laoState,
	sender, responseID, electID, instanceID string, state AcceptState,
) error {
	var events []Event
	var decided bool

	st.Lock()
	inst, err := st.resolve(electID, instanceID)
	if err != nil {
		st.Unlock()
		return err
	}

	current, isAcceptor := inst.AcceptorsState[sender]
	if !isAcceptor {
		st.Unlock()
		return errors.UnauthorizedSender.Clone().SetData("sender", sender).SetData("instance_id", inst.InstanceID)
	}

	switch {
	case inst.Phase.IsTerminal():
		if current == state {
			st.Unlock()
			return nil
		}
		inst.LateResponses = append(inst.LateResponses, Response{
			Sender:    sender,
			State:     state,
			MessageID: responseID,
			At:        e.clock.Now(),
		})
		metrics.Consensus.AddLateResponse()
		events = append(events, Event{Type: EventLateResponse, LaoID: o.ID, Sender: sender, Instance: inst.Clone()})
	case current == state:
		st.Unlock()
		return nil
	case current != AcceptPending:
		st.Unlock()
		return errors.ConflictingResponse.Clone().
			SetData("sender", sender).
			SetData("instance_id", inst.InstanceID)
	default:
		inst.AcceptorsState[sender] = state
		st.setNodeState(sender, inst.InstanceID, state)
		metrics.Consensus.AddResponse(string(state))
		events = append(events, Event{Type: EventAcceptRecorded, LaoID: o.ID, Sender: sender, Instance: inst.Clone()})

		if inst.Phase == PhaseStarted {
			inst.Phase = PhaseWaiting
			events = append(events, Event{Type: EventPhaseChanged, LaoID: o.ID, Sender: sender, Instance: inst.Clone()})
		}

		if phase, ok := decide(inst.Count()); ok {
			inst.Phase = phase
			decided = true
			events = append(events, Event{Type: EventPhaseChanged, LaoID: o.ID, Sender: sender, Instance: inst.Clone()})
		}
	}
	snapshot := inst.Clone()
	st.Unlock()

	e.persist(o.ID, snapshot)
	e.notify(o.ID, events)

	if !decided {
		return nil
	}

	e.decided(o.ID, snapshot)

	if snapshot.Proposer == e.publisher.PublicKey() {
		return e.vote(ctx, o, snapshot)
	}

	return nil
}

func (e *Engine) vote(ctx context.Context, o lao.Organization, inst ElectInstance) error {
	v := messagedata.NewVote(inst.InstanceID, inst.MessageID, inst.Phase == PhaseAccepted)
	env, err := e.publisher.Seal(v)
	if err == nil {
		err = e.publisher.Publish(ctx, o.ConsensusChannel(), env)
	}
	if err != nil {
		return errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", o.ConsensusChannel())
	}

	return nil
}

// OnVote applies the final vote of the proposer of the instance. A
// rejecting vote fails the instance. An accepting vote only accepts it when
// a majority of the acceptors answered ACCEPTED here too; otherwise the
// instance keeps waiting for the answers.
func (e *Engine) OnVote(ctx context.Context, ch channel.Channel, env message.Envelope, vote messagedata.Vote) error {
	o, err := e.organizationOf(ch)
	if err != nil {
		return err
	}

	st := e.state(o)
	target := PhaseFailed
	if vote.Accept {
		target = PhaseAccepted
	}

	var events []Event

	st.Lock()
	inst, err := st.resolve(vote.MessageID, vote.InstanceID)
	if err != nil {
		st.Unlock()
		return err
	}
	if env.Sender != inst.Proposer {
		st.Unlock()
		return errors.UnauthorizedSender.Clone().SetData("sender", env.Sender).SetData("instance_id", inst.InstanceID)
	}

	if inst.Phase.IsTerminal() {
		if inst.Phase == target {
			st.Unlock()
			return nil
		}
		inst.LateResponses = append(inst.LateResponses, Response{
			Sender:    env.Sender,
			State:     acceptStateOf(vote.Accept),
			MessageID: env.MessageID,
			At:        e.clock.Now(),
		})
		metrics.Consensus.AddLateResponse()
		events = append(events, Event{Type: EventLateResponse, LaoID: o.ID, Sender: env.Sender, Instance: inst.Clone()})
	} else if phase, ok := decide(inst.Count()); vote.Accept && (!ok || phase != target) {
		st.Unlock()
		e.log.Debug(
			"accepting vote without a majority of accepted answers",
			"lao", o.ID,
			"instance", inst.InstanceID,
		)
		return nil
	} else {
		inst.Phase = target
		events = append(events, Event{Type: EventPhaseChanged, LaoID: o.ID, Sender: env.Sender, Instance: inst.Clone()})
	}
	snapshot := inst.Clone()
	st.Unlock()

	e.persist(o.ID, snapshot)
	e.notify(o.ID, events)

	if snapshot.Phase == target && events[0].Type == EventPhaseChanged {
		e.decided(o.ID, snapshot)
	}

	return nil
}

// Fail marks a running instance as FAILED; it is used when the caller gives
// up waiting for the answers.
func (e *Engine) Fail(laoID, instanceID string) error {
	st, found := e.existingState(laoID)
	if !found {
		return errors.UnknownConsensusInstance.Clone().SetData("instance_id", instanceID)
	}

	st.Lock()
	inst, found := st.instances[instanceID]
	if !found {
		st.Unlock()
		return errors.UnknownConsensusInstance.Clone().SetData("instance_id", instanceID)
	}
	if inst.Phase.IsTerminal() {
		st.Unlock()
		return errors.ConsensusInstanceFinished.Clone().
			SetData("instance_id", instanceID).
			SetData("phase", inst.Phase)
	}
	inst.Phase = PhaseFailed
	snapshot := inst.Clone()
	st.Unlock()

	e.log.Debug("instance failed", "lao", laoID, "instance", instanceID)

	e.persist(laoID, snapshot)
	e.notify(laoID, []Event{{Type: EventPhaseChanged, LaoID: laoID, Instance: snapshot}})
	e.decided(laoID, snapshot)

	return nil
}

// FailExpired fails every running instance created more than timeout ago
// and returns their ids.
func (e *Engine) FailExpired(timeout time.Duration) []string {
	deadline := e.clock.Now().Add(-timeout).Unix()

	e.RLock()
	var ids [][2]string
	for laoID, st := range e.laos {
		st.Lock()
		for id, inst := range st.instances {
			if !inst.Phase.IsTerminal() && inst.Creation < deadline {
				ids = append(ids, [2]string{laoID, id})
			}
		}
		st.Unlock()
	}
	e.RUnlock()

	var failed []string
	for _, i := range ids {
		if err := e.Fail(i[0], i[1]); err == nil {
			failed = append(failed, i[1])
		}
	}
	sort.Strings(failed)

	return failed
}

func (e *Engine) decided(laoID string, inst ElectInstance) {
	metrics.Consensus.AddDecided(string(inst.Phase))
	e.log.Debug("instance decided", "lao", laoID, "instance", inst.InstanceID, "phase", inst.Phase)

	if inst.Phase == PhaseAccepted && e.onDecided != nil {
		e.onDecided(laoID, inst)
	}
}

func (e *Engine) notify(laoID string, events []Event) {
	for _, ev := range events {
		e.hub.Trigger(laoID, ev)
	}
}

func (e *Engine) persist(laoID string, inst ElectInstance) {
	if e.records == nil {
		return
	}

	if err := e.records.Save(store.RecordKindElectInstance, laoID, inst.InstanceID, inst); err != nil {
		e.log.Error("failed to save instance", "lao", laoID, "instance", inst.InstanceID, "error", err)
	}
}

// Restore loads the instances of laoID saved in the record store.
func (e *Engine) Restore(laoID string) error {
	if e.records == nil {
		return nil
	}

	o, err := e.registry.Get(laoID)
	if err != nil {
		return err
	}

	me := e.publisher.PublicKey()
	st := e.state(o)

	var restored int
	err = e.records.Walk(store.RecordKindElectInstance, laoID, func(id string, decode func(interface{}) error) (bool, error) {
		var inst ElectInstance
		if err := decode(&inst); err != nil {
			return false, err
		}

		st.Lock()
		st.add(&inst)
		if s, found := inst.AcceptorsState[me]; found && s != AcceptPending {
			st.responded[inst.InstanceID] = true
		}
		st.Unlock()
		restored++

		return true, nil
	})
	if err != nil {
		return err
	}

	e.log.Debug("instances restored", "lao", laoID, "count", restored)

	return nil
}

// Subscribe calls fn with every Event of laoID until the subscription is
// canceled. fn must not subscribe or cancel.
func (e *Engine) Subscribe(laoID string, fn func(Event)) *observer.Subscription {
	return e.hub.Subscribe(laoID, fn)
}

func (e *Engine) Instance(laoID, instanceID string) (ElectInstance, error) {
	st, found := e.existingState(laoID)
	if !found {
		return ElectInstance{}, errors.UnknownConsensusInstance.Clone().SetData("instance_id", instanceID)
	}

	st.Lock()
	defer st.Unlock()

	inst, found := st.instances[instanceID]
	if !found {
		return ElectInstance{}, errors.UnknownConsensusInstance.Clone().SetData("instance_id", instanceID)
	}

	return inst.Clone(), nil
}

// Instances returns the instances of laoID ordered by creation and id.
func (e *Engine) Instances(laoID string) []ElectInstance {
	return e.instances(laoID, func(ElectInstance) bool { return true })
}

func (e *Engine) InstancesByKey(laoID string, key Key) []ElectInstance {
	return e.instances(laoID, func(inst ElectInstance) bool { return inst.Key == key })
}

func (e *Engine) instances(laoID string, filter func(ElectInstance) bool) []ElectInstance {
	st, found := e.existingState(laoID)
	if !found {
		return nil
	}

	st.Lock()
	var l []ElectInstance
	for _, inst := range st.instances {
		if filter(*inst) {
			l = append(l, inst.Clone())
		}
	}
	st.Unlock()

	sort.Slice(l, func(i, j int) bool {
		if l[i].Creation != l[j].Creation {
			return l[i].Creation < l[j].Creation
		}
		return l[i].InstanceID < l[j].InstanceID
	})

	return l
}

// NodeState returns what is known about the member publicKey of laoID.
func (e *Engine) NodeState(laoID, publicKey string) (Node, error) {
	o, err := e.registry.Get(laoID)
	if err != nil {
		return Node{}, err
	}

	st := e.state(o)
	st.Lock()
	defer st.Unlock()

	n, found := st.nodes[publicKey]
	if !found {
		return Node{}, errors.ConsensusNodeNotFound.Clone().SetData("public_key", publicKey)
	}

	return n.Clone(), nil
}

func (e *Engine) Nodes(laoID string) []Node {
	o, err := e.registry.Get(laoID)
	if err != nil {
		return nil
	}

	st := e.state(o)
	st.Lock()
	var l []Node
	for _, n := range st.nodes {
		l = append(l, n.Clone())
	}
	st.Unlock()

	sort.Slice(l, func(i, j int) bool { return l[i].PublicKey < l[j].PublicKey })

	return l
}
