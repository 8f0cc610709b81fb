package api

import (
	"net/http"

	"github.com/laonet/laocoord/lib/httputils"
	"github.com/laonet/laocoord/lib/node/runner/api/resource"
)

func (api NetworkHandlerAPI) GetLaosHandler(w http.ResponseWriter, r *http.Request) {
	var rs []resource.Resource
	for _, o := range api.registry.All() {
		rs = append(rs, resource.NewOrganization(o))
	}

	httputils.MustWriteJSON(w, http.StatusOK, resource.NewResourceList(rs, resource.URLLaos))
}

func (api NetworkHandlerAPI) GetLaoHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	httputils.MustWriteJSON(w, http.StatusOK, resource.NewOrganization(o))
}

func (api NetworkHandlerAPI) GetActionsHandler(w http.ResponseWriter, r *http.Request) {
	o, err := api.organization(r)
	if err != nil {
		httputils.WriteJSONError(w, err)
		return
	}

	var rs []resource.Resource
	for _, a := range api.actions.List(o.ID) {
		rs = append(rs, resource.NewAction(o.ID, a))
	}

	self := resource.ReplaceURL(resource.URLLaoActions, "id", o.ID)
	httputils.MustWriteJSON(w, http.StatusOK, resource.NewResourceList(rs, self))
}
