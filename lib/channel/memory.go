package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
)

// memoryHub keeps the history of every channel; the MemoryNetworks made
// from the same hub see each other.
type memoryHub struct {
	sync.RWMutex

	history map[Channel][]message.Envelope
	peers   map[ /* endpoint */ string]*MemoryNetwork
}

// MemoryNetwork is an in-process Transport. Deliveries are queued per
// endpoint, so publishing never blocks on a slow receiver.
type MemoryNetwork struct {
	sync.Mutex

	hub        *memoryHub
	endpoint   string
	subscribed map[Channel]bool
	queue      []Delivery
	cond       *sync.Cond

	receiveChannel chan Delivery
	close          chan bool
	closeOnce      sync.Once
	closed         bool

	unavailable bool
}

func (prev *MemoryNetwork) NewMemoryNetwork() *MemoryNetwork {
	var hub *memoryHub
	if prev != nil {
		hub = prev.hub
	} else {
		hub = &memoryHub{
			history: map[Channel][]message.Envelope{},
			peers:   map[string]*MemoryNetwork{},
		}
	}

	n := &MemoryNetwork{
		hub:            hub,
		endpoint:       CreateNewMemoryEndpoint(),
		subscribed:     map[Channel]bool{},
		receiveChannel: make(chan Delivery),
		close:          make(chan bool),
	}
	n.cond = sync.NewCond(&n.Mutex)

	hub.Lock()
	hub.peers[n.endpoint] = n
	hub.Unlock()

	return n
}

func CreateNewMemoryEndpoint() string {
	return "memory://" + uuid.New().String()
}

func (p *MemoryNetwork) Endpoint() string {
	return p.endpoint
}

// SetUnavailable makes every following Publish and Catchup fail with
// `ChannelUnavailable`.
func (p *MemoryNetwork) SetUnavailable(unavailable bool) {
	p.Lock()
	defer p.Unlock()

	p.unavailable = unavailable
}

func (p *MemoryNetwork) isUnavailable() bool {
	p.Lock()
	defer p.Unlock()

	return p.unavailable || p.closed
}

func (p *MemoryNetwork) Publish(ctx context.Context, ch Channel, m message.Envelope) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", ch)
	}
	if p.isUnavailable() {
		return errors.ChannelUnavailable.Clone().SetData("channel", ch)
	}

	p.hub.Lock()
	defer p.hub.Unlock()

	m = m.Clone()
	p.hub.history[ch] = append(p.hub.history[ch], m)

	for _, peer := range p.hub.peers {
		peer.deliver(Delivery{Channel: ch, Message: m.Clone()})
	}

	return nil
}

func (p *MemoryNetwork) deliver(d Delivery) {
	p.Lock()
	defer p.Unlock()

	if p.closed || !p.subscribed[d.Channel] {
		return
	}

	p.queue = append(p.queue, d)
	p.cond.Signal()
}

func (p *MemoryNetwork) Subscribe(ctx context.Context, ch Channel) error {
	p.Lock()
	defer p.Unlock()

	if p.closed {
		return errors.TransportStopped.Clone()
	}
	p.subscribed[ch] = true

	return nil
}

func (p *MemoryNetwork) Unsubscribe(ctx context.Context, ch Channel) error {
	p.Lock()
	defer p.Unlock()

	if !p.subscribed[ch] {
		return errors.NotSubscribed.Clone().SetData("channel", ch)
	}
	delete(p.subscribed, ch)

	return nil
}

func (p *MemoryNetwork) IsSubscribed(ch Channel) bool {
	p.Lock()
	defer p.Unlock()

	return p.subscribed[ch]
}

func (p *MemoryNetwork) Catchup(ctx context.Context, ch Channel) ([]message.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ChannelUnavailable, err).SetData("channel", ch)
	}
	if p.isUnavailable() {
		return nil, errors.ChannelUnavailable.Clone().SetData("channel", ch)
	}

	p.hub.RLock()
	defer p.hub.RUnlock()

	history := p.hub.history[ch]
	messages := make([]message.Envelope, len(history))
	for i, m := range history {
		messages[i] = m.Clone()
	}

	return messages, nil
}

func (p *MemoryNetwork) Receive() <-chan Delivery {
	return p.receiveChannel
}

// Start moves the queued deliveries to the receive channel until Stop is
// called.
func (p *MemoryNetwork) Start() error {
	for {
		p.Lock()
		for len(p.queue) < 1 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.Unlock()
			return nil
		}
		d := p.queue[0]
		p.queue = p.queue[1:]
		p.Unlock()

		select {
		case <-p.close:
			return nil
		case p.receiveChannel <- d:
		}
	}
}

func (p *MemoryNetwork) Stop() {
	p.closeOnce.Do(func() {
		p.Lock()
		p.closed = true
		p.queue = nil
		p.cond.Broadcast()
		p.Unlock()

		close(p.close)

		p.hub.Lock()
		delete(p.hub.peers, p.endpoint)
		p.hub.Unlock()
	})
}
