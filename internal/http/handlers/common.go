package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/ai"
	"github.com/jarvis-assistant/jarvis-back/internal/http/middleware"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
	"github.com/jarvis-assistant/jarvis-back/internal/service"
	"github.com/rs/zerolog"
)

const (
	maxJSONBodyBytes  = 1 << 20
	maxImageBodyBytes = 10 << 20

	HeaderModel = "X-Jarvis-Model"
	HeaderTask  = "X-Jarvis-Task"

	msgInvalidPayload       = "invalid payload"
	msgRateLimited          = "Rate limit erreicht. Bitte versuche es später erneut."
	msgQuotaExceeded        = "Zahlungspflichtig. Bitte füge Credits hinzu."
	msgGatewayError         = "AI Gateway Fehler"
	msgGatewayNotConfigured = "AI Gateway nicht konfiguriert"
	msgConversationNotFound = "Konversation nicht gefunden"
)

var errInvalidPayload = errors.New(msgInvalidPayload)

type APIDependencies struct {
	Chat              *service.ChatService
	Conversations     *service.ConversationsService
	Geo               *service.GeoService
	StreamIdleTimeout time.Duration
	Logger            zerolog.Logger
}

type API struct {
	chat              *service.ChatService
	conversations     *service.ConversationsService
	geo               *service.GeoService
	streamIdleTimeout time.Duration
	logger            zerolog.Logger
}

func NewAPI(deps APIDependencies) *API {
	return &API{
		chat:              deps.Chat,
		conversations:     deps.Conversations,
		geo:               deps.Geo,
		streamIdleTimeout: deps.StreamIdleTimeout,
		logger:            deps.Logger,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	middleware.WriteError(w, r, statusCode, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, value any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

// classifyError maps service and gateway errors to a status and the
// message shown to callers. Upstream bodies never leave the server.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, inputMessage(err)
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, msgConversationNotFound
	case errors.Is(err, ai.ErrConfiguration):
		return http.StatusInternalServerError, msgGatewayNotConfigured
	case errors.Is(err, ai.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusPaymentRequired, msgQuotaExceeded
	default:
		return http.StatusInternalServerError, msgGatewayError
	}
}

func inputMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
}

func (api *API) logFailure(r *http.Request, statusCode int, err error) {
	if statusCode < http.StatusInternalServerError && statusCode != http.StatusTooManyRequests && statusCode != http.StatusPaymentRequired {
		return
	}
	event := api.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", statusCode)

	var gatewayErr *ai.GatewayHTTPError
	if errors.As(err, &gatewayErr) {
		event = event.Int("upstream_status", gatewayErr.StatusCode).Str("upstream_body", gatewayErr.Message)
	}
	event.Msg("request failed")
}
