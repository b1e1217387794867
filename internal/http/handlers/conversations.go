package handlers

import (
	"net/http"
	"strings"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
)

type createConversationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title,omitempty"`
}

type createMessageRequest struct {
	Role    domain.MessageRole `json:"role"`
	Content string             `json:"content"`
	AIModel string             `json:"ai_model,omitempty"`
}

func (api *API) ListConversations(w http.ResponseWriter, r *http.Request) {
	items, err := api.conversations.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

func (api *API) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var payload createConversationRequest
	if err := decodeJSON(w, r, maxJSONBodyBytes, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	conversation, err := api.conversations.Create(r.Context(), payload.UserID, payload.Title)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

func (api *API) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := api.conversations.Delete(r.Context(), strings.TrimSpace(r.PathValue("id"))); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := api.conversations.Messages(r.Context(), strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (api *API) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var payload createMessageRequest
	if err := decodeJSON(w, r, maxJSONBodyBytes, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	message, err := api.conversations.AddMessage(
		r.Context(),
		strings.TrimSpace(r.PathValue("id")),
		payload.Role,
		payload.Content,
		payload.AIModel,
	)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, message := classifyError(err)
	if statusCode == http.StatusInternalServerError {
		message = "internal error"
	}
	api.logFailure(r, statusCode, err)
	writeError(w, r, statusCode, message)
}
