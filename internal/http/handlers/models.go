package handlers

import "net/http"

// Models lists the routing catalog in priority order.
func (api *API) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": api.chat.Catalog().List()})
}
