package consensus

import (
	"context"
	"sync"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
)

// TestPublisher keeps the published envelopes in memory.
type TestPublisher struct {
	sync.Mutex

	Signer    keypair.Signer
	Published []channel.Delivery
	Fail      bool

	onPublish func(channel.Delivery)
}

func NewTestPublisher(signer keypair.Signer) *TestPublisher {
	return &TestPublisher{Signer: signer}
}

func (p *TestPublisher) PublicKey() string {
	return p.Signer.PublicKey()
}

func (p *TestPublisher) Seal(d messagedata.Data) (message.Envelope, error) {
	b, err := messagedata.Marshal(d)
	if err != nil {
		return message.Envelope{}, err
	}

	return message.Seal(p.Signer, b)
}

func (p *TestPublisher) Publish(_ context.Context, ch channel.Channel, env message.Envelope) error {
	p.Lock()
	if p.Fail {
		p.Unlock()
		return errors.ChannelUnavailable.Clone().SetData("channel", ch)
	}
	d := channel.Delivery{Channel: ch, Message: env}
	p.Published = append(p.Published, d)
	onPublish := p.onPublish
	p.Unlock()

	if onPublish != nil {
		onPublish(d)
	}

	return nil
}

func (p *TestPublisher) SetFail(fail bool) {
	p.Lock()
	defer p.Unlock()

	p.Fail = fail
}

// Deliver decodes env and calls the handler of e for its payload.
func Deliver(ctx context.Context, e *Engine, d channel.Delivery) error {
	b, err := d.Message.DecodeData()
	if err != nil {
		return err
	}

	data, err := messagedata.Decode(b)
	if err != nil {
		return err
	}

	switch m := data.(type) {
	case messagedata.Elect:
		return e.OnElect(ctx, d.Channel, d.Message, m)
	case messagedata.ElectAccept:
		return e.OnElectAccept(ctx, d.Channel, d.Message, m)
	case messagedata.Vote:
		return e.OnVote(ctx, d.Channel, d.Message, m)
	}

	return errors.UnsupportedMessageType.Clone().SetData("object", data.GetObject())
}
