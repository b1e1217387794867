package handlers

import (
	"encoding/json"
	"net/http"
)

type geoRequest struct {
	Image string `json:"image"`
}

type geoResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (api *API) GeoAnalyze(w http.ResponseWriter, r *http.Request) {
	var payload geoRequest
	if err := decodeJSON(w, r, maxImageBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, geoResponse{Error: msgInvalidPayload})
		return
	}

	result, err := api.geo.Analyze(r.Context(), payload.Image)
	if err != nil {
		statusCode, message := classifyError(err)
		api.logFailure(r, statusCode, err)
		writeJSON(w, statusCode, geoResponse{Error: message})
		return
	}

	if result.ModelID != "" {
		w.Header().Set(HeaderModel, result.ModelID)
	}
	writeJSON(w, http.StatusOK, geoResponse{Success: true, Data: result.Data})
}
