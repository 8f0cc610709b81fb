/*
	The checkers of an incoming envelope run in order by `HandleIncoming`:
	1. CheckWellFormed: envelope fields and channel
	2. CheckSignature: the sender signed the data
	3. CheckMessageID: the message id is derived from data and signature
	4. DecodeData: the payload is a known (object, action)
	5. VerifyData: the payload is valid
	6. CheckRoute: a handler is registered for the payload
	7. CheckDuplicated: the message was not handled before; it is marked as
	   handled from here
	8. Execute: run the handler
*/

package dispatcher

import (
	"context"

	logging "github.com/inconshreveable/log15"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
)

type IncomingChecker struct {
	common.DefaultChecker

	Ctx        context.Context
	Dispatcher *Dispatcher
	Channel    channel.Channel
	Envelope   message.Envelope
	LaoID      string
	Data       messagedata.Data
	Handler    HandlerFunc
	Log        logging.Logger
}

func CheckWellFormed(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)

	if !checker.Channel.IsValid() {
		return errors.InvalidChannel.Clone().SetData("channel", checker.Channel)
	}

	return checker.Envelope.IsWellFormed()
}

func CheckSignature(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)
	return checker.Envelope.VerifySignature()
}

func CheckMessageID(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)
	return checker.Envelope.CheckMessageID()
}

func DecodeData(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)

	b, err := checker.Envelope.DecodeData()
	if err != nil {
		return err
	}

	data, err := checker.Dispatcher.types.Decode(b)
	if err != nil {
		return err
	}

	checker.Data = data
	checker.Log = checker.Log.New(logging.Ctx{"object": data.GetObject(), "action": data.GetAction()})

	return nil
}

func VerifyData(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)
	return checker.Data.Verify()
}

func CheckRoute(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)

	handler, found := checker.Dispatcher.handler(checker.Data.GetObject(), checker.Data.GetAction())
	if !found {
		return errors.UnsupportedMessageType.Clone().
			SetData("object", checker.Data.GetObject()).
			SetData("action", checker.Data.GetAction())
	}
	checker.Handler = handler

	return nil
}

func CheckDuplicated(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)

	added, err := checker.Dispatcher.messages.Add(checker.LaoID, checker.Envelope)
	if err != nil {
		return err
	}
	if !added {
		return common.NewCheckerStop("message already handled: %s", checker.Envelope.MessageID)
	}

	return nil
}

func Execute(c common.Checker, args ...interface{}) error {
	checker := c.(*IncomingChecker)
	return checker.Handler(checker.Ctx, checker.Channel, checker.Envelope, checker.Data)
}

var DefaultIncomingCheckerFuncs = []common.CheckerFunc{
	CheckWellFormed,
	CheckSignature,
	CheckMessageID,
	DecodeData,
	VerifyData,
	CheckRoute,
	CheckDuplicated,
	Execute,
}
