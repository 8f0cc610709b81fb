package dispatcher

import (
	"context"
	"sync"
	"time"

	logging "github.com/inconshreveable/log15"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/metrics"
	"github.com/laonet/laocoord/lib/store"
	"github.com/laonet/laocoord/lib/worker"
)

// HandlerFunc applies a verified payload received on ch.
type HandlerFunc func(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error

type PublishResult struct {
	MessageID string
	Err       error
}

// Dispatcher connects the transport to the handlers. Incoming envelopes are
// checked, deduplicated and handled one at a time per organization on a
// worker pool. It also signs and publishes the messages of the local node.
type Dispatcher struct {
	signer    keypair.Signer
	transport channel.Transport
	messages  store.MessageStore
	types     *messagedata.Registry
	conf      common.Config
	log       logging.Logger

	handlersLock sync.RWMutex
	handlers     map[string]HandlerFunc

	pool  *worker.Pool
	queue *worker.SerialQueue

	// catchupLock guards buffers and overflowed. Tasks running on the pool
	// never take it.
	catchupLock sync.Mutex
	buffers     map[channel.Channel][]channel.Delivery
	overflowed  map[channel.Channel]bool

	parkedLock sync.Mutex
	parked     map[string][]channel.Delivery

	stop     chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(signer keypair.Signer, transport channel.Transport, messages store.MessageStore, conf common.Config) *Dispatcher {
	pool := worker.NewPool(conf.WorkerPoolSize)

	return &Dispatcher{
		signer:     signer,
		transport:  transport,
		messages:   messages,
		types:      messagedata.DefaultRegistry,
		conf:       conf,
		log:        log.New(logging.Ctx{"node": signer.PublicKey()}),
		handlers:   map[string]HandlerFunc{},
		pool:       pool,
		queue:      worker.NewSerialQueue(pool),
		buffers:    map[channel.Channel][]channel.Delivery{},
		overflowed: map[channel.Channel]bool{},
		parked:     map[string][]channel.Delivery{},
		stop:       make(chan struct{}),
	}
}

// Register sets the handler of the payloads (object, action); it replaces
// the previous one.
func (d *Dispatcher) Register(object, action string, handler HandlerFunc) {
	d.handlersLock.Lock()
	defer d.handlersLock.Unlock()

	d.handlers[messagedata.Key(object, action)] = handler
}

func (d *Dispatcher) handler(object, action string) (HandlerFunc, bool) {
	d.handlersLock.RLock()
	defer d.handlersLock.RUnlock()

	h, found := d.handlers[messagedata.Key(object, action)]
	return h, found
}

func (d *Dispatcher) PublicKey() string {
	return d.signer.PublicKey()
}

func (d *Dispatcher) Sign(b []byte) ([]byte, error) {
	return d.signer.Sign(b)
}

func (d *Dispatcher) Seal(data messagedata.Data) (message.Envelope, error) {
	b, err := messagedata.Marshal(data)
	if err != nil {
		return message.Envelope{}, err
	}

	return message.Seal(d.signer, b)
}

// HandleIncoming runs the checkers for env received on ch. An envelope
// already handled returns nil without running the handler again.
//
// An envelope which refers to a message not handled yet, like an
// elect_accept received before its elect, is parked: it is not marked as
// handled and it is handled again after the next envelope of the same
// organization was applied.
func (d *Dispatcher) HandleIncoming(ctx context.Context, ch channel.Channel, env message.Envelope) error {
	handled, err := d.handle(ctx, ch, env)
	if handled {
		d.retryParked(ctx, ch.LaoID())
	}

	return err
}

// isOutOfOrder reports whether err means that the message env refers to is
// not known yet.
func isOutOfOrder(err error) bool {
	e, ok := err.(*errors.Error)
	if !ok {
		return false
	}

	return e.Code == errors.UnknownConsensusInstance.Code || e.Code == errors.UnknownWitnessMessage.Code
}

// handle returns true when the handler of env ran without error.
func (d *Dispatcher) handle(ctx context.Context, ch channel.Channel, env message.Envelope) (bool, error) {
	begin := time.Now()
	defer metrics.Dispatcher.ObserveDurationSeconds(begin)

	checker := &IncomingChecker{
		DefaultChecker: common.DefaultChecker{Funcs: DefaultIncomingCheckerFuncs},
		Ctx:            ctx,
		Dispatcher:     d,
		Channel:        ch,
		Envelope:       env,
		LaoID:          ch.LaoID(),
		Log:            d.log.New(logging.Ctx{"channel": ch, "message": env.MessageID, "sender": env.Sender}),
	}

	err := common.RunChecker(checker, common.DefaultDeferFunc)

	var object, action string
	if checker.Data != nil {
		object, action = checker.Data.GetObject(), checker.Data.GetAction()
	}

	if err != nil {
		if _, ok := err.(common.CheckerStop); ok {
			checker.Log.Debug("duplicated message")
			metrics.Dispatcher.AddMessage(object, action, metrics.DispatcherResultDuplicate)
			return false, nil
		}

		if checker.Handler != nil && isOutOfOrder(err) {
			if rerr := d.messages.Remove(checker.LaoID, env.MessageID); rerr != nil {
				checker.Log.Error("failed to unmark parked message", "error", rerr)
			} else {
				d.park(channel.Delivery{Channel: ch, Message: env})
				checker.Log.Debug("message parked", "error", err)
				metrics.Dispatcher.AddMessage(object, action, metrics.DispatcherResultParked)
				return false, err
			}
		}

		checker.Log.Debug("message dropped", "error", err)
		metrics.Dispatcher.AddMessage(object, action, metrics.DispatcherResultDropped)
		return false, err
	}

	checker.Log.Debug("message handled")
	metrics.Dispatcher.AddMessage(object, action, metrics.DispatcherResultHandled)

	return true, nil
}

// park keeps delivery until its organization applies another message; past
// CatchupBufferLimit the oldest parked delivery is dropped, and a later
// catchup brings it back.
func (d *Dispatcher) park(delivery channel.Delivery) {
	d.parkedLock.Lock()
	defer d.parkedLock.Unlock()

	laoID := delivery.Channel.LaoID()
	parked := d.parked[laoID]
	for _, p := range parked {
		if p.Message.MessageID == delivery.Message.MessageID {
			return
		}
	}

	if d.conf.CatchupBufferLimit > 0 && len(parked) >= d.conf.CatchupBufferLimit {
		d.log.Debug("too many parked messages; the oldest is dropped", "lao", laoID, "message", parked[0].Message.MessageID)
		parked = parked[1:]
	}
	d.parked[laoID] = append(parked, delivery)
}

func (d *Dispatcher) takeParked(laoID string) []channel.Delivery {
	d.parkedLock.Lock()
	defer d.parkedLock.Unlock()

	parked := d.parked[laoID]
	delete(d.parked, laoID)

	return parked
}

// retryParked handles the parked deliveries of laoID again until none of
// them can be applied.
func (d *Dispatcher) retryParked(ctx context.Context, laoID string) {
	for {
		parked := d.takeParked(laoID)
		if len(parked) < 1 {
			return
		}

		var progressed bool
		for _, delivery := range parked {
			if handled, _ := d.handle(ctx, delivery.Channel, delivery.Message); handled {
				progressed = true
			}
		}

		if !progressed {
			return
		}
	}
}

// HandleSerial handles env on the queue of its organization, after the
// deliveries already queued, and waits for the result. It must not be called
// from a handler.
func (d *Dispatcher) HandleSerial(ctx context.Context, ch channel.Channel, env message.Envelope) error {
	result := make(chan error, 1)
	err := d.queue.Add(ctx, ch.LaoID(), func() {
		result <- d.HandleIncoming(context.Background(), ch, env)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish marks env as handled and sends it on ch, so its echo is not
// applied again. When the transport refuses env, the mark is removed again.
func (d *Dispatcher) Publish(ctx context.Context, ch channel.Channel, env message.Envelope) error {
	added, err := d.messages.Add(ch.LaoID(), env)
	if err != nil {
		return err
	}

	if d.conf.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.conf.PublishTimeout)
		defer cancel()
	}

	if err := d.transport.Publish(ctx, ch, env); err != nil {
		d.log.Debug("failed to publish", "channel", ch, "message", env.MessageID, "error", err)
		if added {
			if rerr := d.messages.Remove(ch.LaoID(), env.MessageID); rerr != nil {
				d.log.Error("failed to unmark unpublished message", "message", env.MessageID, "error", rerr)
			}
		}
		if e, ok := err.(*errors.Error); ok && e.Code == errors.ChannelUnavailable.Code {
			return e
		}
		return errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", ch)
	}

	return nil
}

// Forward handles env, signed by a client, and publishes it on ch once it
// was accepted.
func (d *Dispatcher) Forward(ctx context.Context, ch channel.Channel, env message.Envelope) error {
	if err := d.HandleSerial(ctx, ch, env); err != nil {
		return err
	}

	return d.Publish(ctx, ch, env)
}

// PublishSigned signs data and publishes it on ch. It returns once the
// transport took the message.
func (d *Dispatcher) PublishSigned(ctx context.Context, ch channel.Channel, data messagedata.Data) (string, error) {
	env, err := d.Seal(data)
	if err != nil {
		return "", err
	}

	if err := d.Publish(ctx, ch, env); err != nil {
		return "", err
	}

	metrics.Dispatcher.AddPublished(data.GetObject(), data.GetAction())
	d.log.Debug("published", "channel", ch, "message", env.MessageID, "object", data.GetObject(), "action", data.GetAction())

	return env.MessageID, nil
}

// PublishSignedAsync runs PublishSigned on the worker pool; the result is
// sent once on the returned channel.
func (d *Dispatcher) PublishSignedAsync(ctx context.Context, ch channel.Channel, data messagedata.Data) <-chan PublishResult {
	result := make(chan PublishResult, 1)

	go func() {
		err := d.pool.Add(ctx, func() {
			messageID, err := d.PublishSigned(ctx, ch, data)
			result <- PublishResult{MessageID: messageID, Err: err}
		})
		if err != nil {
			result <- PublishResult{Err: err}
		}
	}()

	return result
}

func (d *Dispatcher) Subscribe(ctx context.Context, ch channel.Channel) error {
	return d.transport.Subscribe(ctx, ch)
}

// Join subscribes ch and replays its history. The deliveries received from
// the subscription on are handled after the history.
func (d *Dispatcher) Join(ctx context.Context, ch channel.Channel) error {
	d.beginCatchup(ch)

	if err := d.transport.Subscribe(ctx, ch); err != nil {
		d.endCatchup(context.Background(), ch)
		return err
	}

	return d.CatchupAndReplay(ctx, ch)
}

func (d *Dispatcher) Unsubscribe(ctx context.Context, ch channel.Channel) error {
	d.catchupLock.Lock()
	delete(d.buffers, ch)
	delete(d.overflowed, ch)
	d.catchupLock.Unlock()

	return d.transport.Unsubscribe(ctx, ch)
}

// enqueue waits for ctx while the queue is full; the handler itself runs
// without it.
func (d *Dispatcher) enqueue(ctx context.Context, delivery channel.Delivery) error {
	return d.queue.Add(ctx, delivery.Channel.LaoID(), func() {
		d.HandleIncoming(context.Background(), delivery.Channel, delivery.Message)
	})
}

// route buffers delivery when its channel is caught up, or queues it.
func (d *Dispatcher) route(ctx context.Context, delivery channel.Delivery) {
	d.catchupLock.Lock()
	defer d.catchupLock.Unlock()

	if buffer, found := d.buffers[delivery.Channel]; found {
		// the next history of the channel will contain it
		if d.overflowed[delivery.Channel] {
			return
		}

		if d.conf.CatchupBufferLimit > 0 && len(buffer) >= d.conf.CatchupBufferLimit {
			d.log.Debug("catchup buffer is full; the channel will be caught up again", "channel", delivery.Channel)
			d.overflowed[delivery.Channel] = true
			d.buffers[delivery.Channel] = []channel.Delivery{}
			return
		}
		d.buffers[delivery.Channel] = append(buffer, delivery)
		return
	}

	if err := d.enqueue(ctx, delivery); err != nil {
		d.log.Error("failed to queue delivery", "channel", delivery.Channel, "error", err)
	}
}

func (d *Dispatcher) beginCatchup(ch channel.Channel) {
	d.catchupLock.Lock()
	defer d.catchupLock.Unlock()

	if _, found := d.buffers[ch]; !found {
		d.buffers[ch] = []channel.Delivery{}
	}
}

// endCatchup queues the deliveries buffered during the catchup of ch and
// stops buffering.
func (d *Dispatcher) endCatchup(ctx context.Context, ch channel.Channel) {
	d.catchupLock.Lock()
	defer d.catchupLock.Unlock()

	buffer := d.buffers[ch]
	delete(d.buffers, ch)
	delete(d.overflowed, ch)

	for _, delivery := range buffer {
		if err := d.enqueue(ctx, delivery); err != nil {
			d.log.Error("failed to queue buffered delivery", "channel", ch, "error", err)
		}
	}
}

// restartCatchup reports whether live deliveries of ch were dropped since
// the catchup began; if so, buffering starts over.
func (d *Dispatcher) restartCatchup(ch channel.Channel) bool {
	d.catchupLock.Lock()
	defer d.catchupLock.Unlock()

	if !d.overflowed[ch] {
		return false
	}

	delete(d.overflowed, ch)
	d.buffers[ch] = []channel.Delivery{}

	return true
}

// History returns the messages published so far on ch without handling
// them.
func (d *Dispatcher) History(ctx context.Context, ch channel.Channel) ([]message.Envelope, error) {
	messages, err := d.transport.Catchup(ctx, ch)
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Code == errors.ChannelUnavailable.Code {
			return nil, e
		}
		return nil, errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", ch)
	}

	return messages, nil
}

// CatchupAndReplay fetches the history of ch and handles it in transport
// order. The live deliveries of ch received meanwhile are handled after the
// history. When more than CatchupBufferLimit deliveries arrive meanwhile,
// the history is fetched and replayed again.
func (d *Dispatcher) CatchupAndReplay(ctx context.Context, ch channel.Channel) error {
	d.beginCatchup(ch)
	defer d.endCatchup(context.Background(), ch)

	for {
		if err := d.replay(ctx, ch); err != nil {
			return err
		}

		if !d.restartCatchup(ch) {
			return nil
		}
		d.log.Debug("catchup buffer overflowed; catching up again", "channel", ch)
	}
}

func (d *Dispatcher) replay(ctx context.Context, ch channel.Channel) error {
	messages, err := d.History(ctx, ch)
	if err != nil {
		return err
	}

	d.log.Debug("catchup", "channel", ch, "messages", len(messages))

	laoID := ch.LaoID()
	for _, env := range messages {
		delivery := channel.Delivery{Channel: ch, Message: env}
		if err := d.enqueue(ctx, delivery); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	if err := d.queue.Add(ctx, laoID, func() { close(done) }); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start moves the deliveries of the transport to the workers until Stop is
// called.
func (d *Dispatcher) Start() error {
	receive := d.transport.Receive()
	for {
		select {
		case <-d.stop:
			return nil
		case delivery, ok := <-receive:
			if !ok {
				return nil
			}
			d.route(context.Background(), delivery)
		}
	}
}

// Wait blocks until the queued deliveries are handled.
func (d *Dispatcher) Wait() {
	d.queue.Wait()
}

func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		d.pool.Finish()
	})
}
