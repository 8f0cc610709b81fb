package witness

import (
	"context"
	"sync"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
)

// TestPublisher signs with its key pair and keeps the published envelopes.
type TestPublisher struct {
	sync.Mutex
	*keypair.KeypairSigner

	Published []channel.Delivery
	Fail      bool
}

func NewTestPublisher(signer *keypair.KeypairSigner) *TestPublisher {
	return &TestPublisher{KeypairSigner: signer}
}

func (p *TestPublisher) Seal(d messagedata.Data) (message.Envelope, error) {
	b, err := messagedata.Marshal(d)
	if err != nil {
		return message.Envelope{}, err
	}

	return message.Seal(p.KeypairSigner, b)
}

func (p *TestPublisher) Publish(_ context.Context, ch channel.Channel, env message.Envelope) error {
	p.Lock()
	defer p.Unlock()

	if p.Fail {
		return errors.ChannelUnavailable.Clone().SetData("channel", ch)
	}
	p.Published = append(p.Published, channel.Delivery{Channel: ch, Message: env})

	return nil
}
