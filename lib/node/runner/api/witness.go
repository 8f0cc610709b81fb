package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/httputils"
	"github.com/laonet/laocoord/lib/node/runner/api/resource"
	"github.com/laonet/laocoord/lib/witness"
)

// GetWitnessMessagesHandler lists the witness messages of an organization.
// `state=pending` keeps the pending actions only.
func (api NetworkHandlerAPI) GetWitnessMessagesHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	var messages []witness.Message
	switch state := r.URL.Query().Get("state"); state {
	case "", "all":
		messages = api.witness.Messages(o.ID)
	case "pending":
		messages = api.witness.PendingActions(o.ID)
	default:
		httputils.WriteJSONError(w, errors.BadRequestParameter.Clone().SetData("state", state))
		return
	}

	var rs []resource.Resource
	for _, m := range messages {
		rs = append(rs, resource.NewWitnessMessage(o.ID, m))
	}

	self := resource.ReplaceURL(resource.URLLaoWitnessMessages, "id", o.ID)
	httputils.MustWriteJSON(w, http.StatusOK, resource.NewResourceList(rs, self))
}

func (api NetworkHandlerAPI) GetWitnessMessageHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	m, err := api.witness.Message(o.ID, mux.Vars(r)["message"])
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	httputils.MustWriteJSON(w, http.StatusOK, resource.NewWitnessMessage(o.ID, m))
}
