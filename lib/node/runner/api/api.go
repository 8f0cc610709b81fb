package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/dispatcher"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/httputils"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/node/runner/api/resource"
	"github.com/laonet/laocoord/lib/witness"
)

// MaxQuerySize bounds the body of a query.
const MaxQuerySize int64 = 1 << 20

// NetworkHandlerAPI serves the state of the organizations known by the local
// node, and takes the queries of the clients.
type NetworkHandlerAPI struct {
	registry   *lao.Registry
	consensus  *consensus.Engine
	witness    *witness.Engine
	actions    *lao.ActionLog
	dispatcher *dispatcher.Dispatcher
	nodeInfo   resource.NodeInfo
}

func NewNetworkHandlerAPI(
	registry *lao.Registry,
	c *consensus.Engine,
	w *witness.Engine,
	actions *lao.ActionLog,
	d *dispatcher.Dispatcher,
	nodeInfo resource.NodeInfo,
) *NetworkHandlerAPI {
	return &NetworkHandlerAPI{
		registry:   registry,
		consensus:  c,
		witness:    w,
		actions:    actions,
		dispatcher: d,
		nodeInfo:   nodeInfo,
	}
}

// Routes returns the handler of every url pattern, by http method.
func (api NetworkHandlerAPI) Routes() map[string]map[string]http.HandlerFunc {
	return map[string]map[string]http.HandlerFunc{
		resource.URLNodeInfo:           {"GET": api.GetNodeInfoHandler},
		resource.URLQuery:              {"POST": api.PostQueryHandler},
		resource.URLLaos:               {"GET": api.GetLaosHandler},
		resource.URLLao:                {"GET": api.GetLaoHandler},
		resource.URLLaoInstances:       {"GET": api.GetInstancesHandler},
		resource.URLLaoInstance:        {"GET": api.GetInstanceHandler},
		resource.URLLaoNodes:           {"GET": api.GetNodesHandler},
		resource.URLLaoNode:            {"GET": api.GetNodeHandler},
		resource.URLLaoWitnessMessages: {"GET": api.GetWitnessMessagesHandler},
		resource.URLLaoWitnessMessage:  {"GET": api.GetWitnessMessageHandler},
		resource.URLLaoActions:         {"GET": api.GetActionsHandler},
	}
}

func (api NetworkHandlerAPI) GetNodeInfoHandler(w http.ResponseWriter, r *http.Request) {
	info := api.nodeInfo
	info.Organizations = []string{}
	for _, o := range api.registry.All() {
		info.Organizations = append(info.Organizations, o.ID)
	}

	httputils.MustWriteJSON(w, http.StatusOK, info)
}

// organization finds the organization of the `id` path variable.
func (api NetworkHandlerAPI) organization(r *http.Request) (lao.Organization, error) {
	id := mux.Vars(r)["id"]
	if len(id) < 1 {
		return lao.Organization{}, errors.BadRequestParameter.Clone().SetData("id", id)
	}

	return api.registry.Get(id)
}
