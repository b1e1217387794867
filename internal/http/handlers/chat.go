package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/ai"
	"github.com/jarvis-assistant/jarvis-back/internal/http/middleware"
	"github.com/jarvis-assistant/jarvis-back/internal/service"
)

type chatRequest struct {
	Messages       []ai.Message `json:"messages"`
	ConversationID string       `json:"conversation_id,omitempty"`
}

// Chat routes the history to a model and relays the upstream SSE stream
// byte for byte. Errors before the first byte are JSON; after that the
// stream is simply cut.
func (api *API) Chat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := decodeJSON(w, r, maxJSONBodyBytes, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	stream, err := api.chat.Open(r.Context(), service.ChatInput{
		Messages:       payload.Messages,
		ConversationID: payload.ConversationID,
	})
	if err != nil {
		statusCode, message := classifyError(err)
		api.logFailure(r, statusCode, err)
		writeError(w, r, statusCode, message)
		return
	}
	defer stream.Close()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	header.Set(HeaderModel, stream.Decision.Model.ID)
	header.Set(HeaderTask, stream.Decision.Tags.String())

	controller := http.NewResponseController(w)
	_ = controller.SetWriteDeadline(time.Time{})
	flush := func() error {
		if err := controller.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	w.WriteHeader(http.StatusOK)
	_ = flush()

	stats, err := ai.Pipe(r.Context(), stream.Body, w, ai.PipeOptions{
		IdleTimeout: api.streamIdleTimeout,
		Flush:       flush,
		Observer:    stream.Observer(),
	})

	event := api.logger.Info()
	if err != nil && !errors.Is(err, context.Canceled) {
		event = api.logger.Warn().Err(err)
	}
	event.
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("model_id", stream.Decision.Model.ID).
		Int64("bytes", stats.Bytes).
		Int("chunks", stats.Chunks).
		Bool("client_gone", errors.Is(err, context.Canceled)).
		Msg("chat stream finished")

	stream.Finish(context.WithoutCancel(r.Context()))
}
