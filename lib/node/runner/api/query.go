package api

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/httputils"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/query"
)

// PostQueryHandler takes a query of a client. A query which can not be
// parsed is a problem; the result of a parsed one is an answer.
func (api NetworkHandlerAPI) PostQueryHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := ioutil.ReadAll(io.LimitReader(r.Body, MaxQuerySize))
	if err != nil {
		httputils.WriteJSONError(w, errors.BadRequestParameter.Clone().SetData("error", err.Error()))
		return
	}

	q, err := query.Parse(body)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	id := query.QueryID(q)
	result, err := api.handleQuery(r.Context(), q)
	if err != nil {
		httputils.MustWriteJSON(w, http.StatusOK, query.NewErrorAnswer(id, err))
		return
	}

	httputils.MustWriteJSON(w, http.StatusOK, query.NewResult(id, result))
}

func queryChannel(s string) (channel.Channel, error) {
	ch := channel.Channel(s)
	if !ch.IsValid() {
		return ch, errors.InvalidChannel.Clone().SetData("channel", s)
	}

	return ch, nil
}

func (api NetworkHandlerAPI) handleQuery(ctx context.Context, q interface{}) (interface{}, error) {
	switch t := q.(type) {
	case *query.Publish:
		ch, err := queryChannel(t.Params.Channel)
		if err != nil {
			return nil, err
		}
		return 0, api.dispatcher.Forward(ctx, ch, t.Params.Message)
	case *query.Broadcast:
		ch, err := queryChannel(t.Params.Channel)
		if err != nil {
			return nil, err
		}
		return 0, api.dispatcher.HandleSerial(ctx, ch, t.Params.Message)
	case *query.Catchup:
		ch, err := queryChannel(t.Params.Channel)
		if err != nil {
			return nil, err
		}
		messages, err := api.dispatcher.History(ctx, ch)
		if err != nil {
			return nil, err
		}
		if messages == nil {
			messages = []message.Envelope{}
		}
		return messages, nil
	case *query.Subscribe:
		ch, err := queryChannel(t.Params.Channel)
		if err != nil {
			return nil, err
		}
		return 0, api.dispatcher.Subscribe(ctx, ch)
	case *query.Unsubscribe:
		ch, err := queryChannel(t.Params.Channel)
		if err != nil {
			return nil, err
		}
		return 0, api.dispatcher.Unsubscribe(ctx, ch)
	}

	return nil, errors.UnsupportedMessageType.Clone()
}
