package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/httputils"
	"github.com/laonet/laocoord/lib/node/runner/api/resource"
)

// GetInstancesHandler lists the instances of an organization; `phase`
// filters them.
func (api NetworkHandlerAPI) GetInstancesHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	var phase consensus.Phase
	if p := r.URL.Query().Get("phase"); len(p) > 0 {
		phase = consensus.Phase(strings.ToUpper(p))
		switch phase {
		case consensus.PhaseStarted, consensus.PhaseWaiting, consensus.PhaseAccepted, consensus.PhaseFailed:
		default:
			httputils.WriteJSONError(w, errors.BadRequestParameter.Clone().SetData("phase", p))
			return
		}
	}

	var rs []resource.Resource
	for _, inst := range api.consensus.Instances(o.ID) {
		if len(phase) > 0 && inst.Phase != phase {
			continue
		}
		rs = append(rs, resource.NewInstance(o.ID, inst))
	}

	self := resource.ReplaceURL(resource.URLLaoInstances, "id", o.ID)
	httputils.MustWriteJSON(w, http.StatusOK, resource.NewResourceList(rs, self))
}

func (api NetworkHandlerAPI) GetInstanceHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	inst, err := api.consensus.Instance(o.ID, mux.Vars(r)["instance"])
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	httputils.MustWriteJSON(w, http.StatusOK, resource.NewInstance(o.ID, inst))
}

func (api NetworkHandlerAPI) GetNodesHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	var rs []resource.Resource
	for _, n := range api.consensus.Nodes(o.ID) {
		rs = append(rs, resource.NewNode(o.ID, n))
	}

	self := resource.ReplaceURL(resource.URLLaoNodes, "id", o.ID)
	httputils.MustWriteJSON(w, http.StatusOK, resource.NewResourceList(rs, self))
}

func (api NetworkHandlerAPI) GetNodeHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	n, err := api.consensus.NodeState(o.ID, mux.Vars(r)["node"])
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	httputils.MustWriteJSON(w, http.StatusOK, resource.NewNode(o.ID, n))
}
