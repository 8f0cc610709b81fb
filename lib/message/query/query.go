package query

import (
	"encoding/json"

	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
)

const (
	JSONRPCVersion = "2.0"

	MethodPublish     = "publish"
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"
	MethodCatchup     = "catchup"
	MethodBroadcast   = "broadcast"
)

type Base struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
}

type ChannelParams struct {
	Channel string `json:"channel"`
}

type PublishParams struct {
	Channel string           `json:"channel"`
	Message message.Envelope `json:"message"`
}

type Publish struct {
	Base
	ID     int           `json:"id"`
	Params PublishParams `json:"params"`
}

type Subscribe struct {
	Base
	ID     int           `json:"id"`
	Params ChannelParams `json:"params"`
}

type Unsubscribe struct {
	Base
	ID     int           `json:"id"`
	Params ChannelParams `json:"params"`
}

type Catchup struct {
	Base
	ID     int           `json:"id"`
	Params ChannelParams `json:"params"`
}

// Broadcast is pushed to the subscribers of a channel; it has no id and no
// answer.
type Broadcast struct {
	Base
	Params PublishParams `json:"params"`
}

func NewPublish(id int, channel string, m message.Envelope) Publish {
	return Publish{
		Base:   Base{JSONRPC: JSONRPCVersion, Method: MethodPublish},
		ID:     id,
		Params: PublishParams{Channel: channel, Message: m},
	}
}

func NewBroadcast(channel string, m message.Envelope) Broadcast {
	return Broadcast{
		Base:   Base{JSONRPC: JSONRPCVersion, Method: MethodBroadcast},
		Params: PublishParams{Channel: channel, Message: m},
	}
}

func NewCatchup(id int, channel string) Catchup {
	return Catchup{
		Base:   Base{JSONRPC: JSONRPCVersion, Method: MethodCatchup},
		ID:     id,
		Params: ChannelParams{Channel: channel},
	}
}

// Parse decodes a raw query by its method.
func Parse(b []byte) (interface{}, error) {
	var base Base
	if err := json.Unmarshal(b, &base); err != nil {
		return nil, errors.InvalidEnvelope.Clone().SetData("error", err.Error())
	}
	if base.JSONRPC != JSONRPCVersion {
		return nil, errors.InvalidEnvelope.Clone().SetData("jsonrpc", base.JSONRPC)
	}

	var q interface{}
	switch base.Method {
	case MethodPublish:
		q = &Publish{}
	case MethodSubscribe:
		q = &Subscribe{}
	case MethodUnsubscribe:
		q = &Unsubscribe{}
	case MethodCatchup:
		q = &Catchup{}
	case MethodBroadcast:
		q = &Broadcast{}
	default:
		return nil, errors.UnsupportedMessageType.Clone().SetData("method", base.Method)
	}

	if err := json.Unmarshal(b, q); err != nil {
		return nil, errors.InvalidEnvelope.Clone().SetData("error", err.Error())
	}

	return q, nil
}

type AnswerError struct {
	Code        int                    `json:"code"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Answer is the reply to a query with an id; exactly one of Result and
// Error is set.
type Answer struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      int          `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *AnswerError `json:"error,omitempty"`
}

func NewResult(id int, result interface{}) Answer {
	return Answer{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func NewErrorAnswer(id int, err error) Answer {
	ae := &AnswerError{Code: -1, Description: err.Error()}
	if e, ok := err.(*errors.Error); ok {
		ae.Code = int(e.Code)
		ae.Description = e.Message
		if len(e.Data) > 0 {
			ae.Data = e.Data
		}
	}

	return Answer{JSONRPC: JSONRPCVersion, ID: id, Error: ae}
}

// QueryID returns the id of a parsed query; broadcasts have none.
func QueryID(q interface{}) int {
	switch t := q.(type) {
	case *Publish:
		return t.ID
	case *Subscribe:
		return t.ID
	case *Unsubscribe:
		return t.ID
	case *Catchup:
		return t.ID
	}

	return 0
}

func NewSubscribe(id int, channel string) Subscribe {
	return Subscribe{
		Base:   Base{JSONRPC: JSONRPCVersion, Method: MethodSubscribe},
		ID:     id,
		Params: ChannelParams{Channel: channel},
	}
}

func NewUnsubscribe(id int, channel string) Unsubscribe {
	return Unsubscribe{
		Base:   Base{JSONRPC: JSONRPCVersion, Method: MethodUnsubscribe},
		ID:     id,
		Params: ChannelParams{Channel: channel},
	}
}
