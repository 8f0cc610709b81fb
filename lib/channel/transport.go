package channel

import (
	"context"

	"github.com/laonet/laocoord/lib/message"
)

// Delivery is a message received on a subscribed channel.
type Delivery struct {
	Channel Channel
	Message message.Envelope
}

// Transport is a channel based publish/subscribe network. Messages are
// delivered in publication order within a channel; there is no order across
// channels.
type Transport interface {
	Publish(context.Context, Channel, message.Envelope) error
	Subscribe(context.Context, Channel) error
	Unsubscribe(context.Context, Channel) error

	// Catchup returns the messages published so far on the channel, in
	// transport order.
	Catchup(context.Context, Channel) ([]message.Envelope, error)

	Receive() <-chan Delivery
}
