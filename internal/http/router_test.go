package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/ai"
	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/jarvis-assistant/jarvis-back/internal/http/handlers"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
	"github.com/jarvis-assistant/jarvis-back/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const upstreamStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hallo\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\" zurück\"}}]}\n\n" +
	"data: [DONE]\n\n"

type upstreamStub struct {
	mu       sync.Mutex
	status   int
	body     string
	payloads []map[string]any
}

func (u *upstreamStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	u.mu.Lock()
	u.payloads = append(u.payloads, payload)
	status, body := u.status, u.body
	u.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	_, _ = io.WriteString(w, body)
}

func (u *upstreamStub) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.payloads)
}

type testServer struct {
	handler  http.Handler
	upstream *upstreamStub
	repo     *repository.MemoryConversationsRepository
	events   *eventSink
}

type eventSink struct {
	mu     sync.Mutex
	events []domain.MessageEvent
}

func (s *eventSink) Enqueue(_ context.Context, event domain.MessageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *eventSink) snapshot() []domain.MessageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MessageEvent(nil), s.events...)
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()

	upstream := &upstreamStub{body: upstreamStream}
	upstreamServer := httptest.NewServer(upstream)
	t.Cleanup(upstreamServer.Close)

	gateway := ai.NewGatewayClient(ai.GatewayClientConfig{
		APIKey:  apiKey,
		BaseURL: upstreamServer.URL,
		Timeout: 2 * time.Second,
	})
	repo := repository.NewMemoryConversationsRepository()
	events := &eventSink{}
	logger := zerolog.Nop()

	api := handlers.NewAPI(handlers.APIDependencies{
		Chat: service.NewChatService(service.ChatDependencies{
			Gateway:       gateway,
			Conversations: repo,
			Producer:      events,
			Logger:        logger,
		}),
		Conversations: service.NewConversationsService(repo),
		Geo:           service.NewGeoService(service.GeoDependencies{Client: gateway, Logger: logger}),
		Logger:        logger,
	})

	return &testServer{
		handler: NewRouter(RouterDependencies{
			API:            api,
			Logger:         logger,
			CORSOrigins:    []string{"*"},
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		}),
		upstream: upstream,
		repo:     repo,
		events:   events,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())
	return body
}

func TestChatRelaysUpstreamStream(t *testing.T) {
	server := newTestServer(t, "test-key")

	recorder := server.do(http.MethodPost, "/ai-chat", `{"messages":[{"role":"user","content":"Schreibe eine Python Funktion"}]}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, upstreamStream, recorder.Body.String())
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "openai/gpt-5-mini", recorder.Header().Get(handlers.HeaderModel))
	require.Equal(t, "code, technical, programming", recorder.Header().Get(handlers.HeaderTask))

	require.Equal(t, 1, server.upstream.calls())
	payload := server.upstream.payloads[0]
	require.Equal(t, "openai/gpt-5-mini", payload["model"])
	require.Equal(t, true, payload["stream"])
	messages := payload["messages"].([]any)
	require.Len(t, messages, 2)
	require.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestChatMapsUpstreamRateLimit(t *testing.T) {
	server := newTestServer(t, "test-key")
	server.upstream.status = http.StatusTooManyRequests
	server.upstream.body = `{"error":"quota bucket empty"}`

	recorder := server.do(http.MethodPost, "/ai-chat", `{"messages":[{"role":"user","content":"Hallo"}]}`)

	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, "Rate limit erreicht. Bitte versuche es später erneut.", body["error"])
	require.NotContains(t, recorder.Body.String(), "quota bucket")
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestChatMapsUpstreamFailures(t *testing.T) {
	cases := []struct {
		status   int
		expected int
		message  string
	}{
		{status: http.StatusPaymentRequired, expected: http.StatusPaymentRequired, message: "Zahlungspflichtig. Bitte füge Credits hinzu."},
		{status: http.StatusBadGateway, expected: http.StatusInternalServerError, message: "AI Gateway Fehler"},
	}
	for _, tc := range cases {
		server := newTestServer(t, "test-key")
		server.upstream.status = tc.status
		server.upstream.body = "internal details"

		recorder := server.do(http.MethodPost, "/ai-chat", `{"messages":[{"role":"user","content":"Hallo"}]}`)

		require.Equal(t, tc.expected, recorder.Code)
		require.Equal(t, tc.message, decodeBody(t, recorder)["error"])
		require.NotContains(t, recorder.Body.String(), "internal details")
	}
}

func TestChatWithoutCredentialNeverCallsUpstream(t *testing.T) {
	server := newTestServer(t, "")

	recorder := server.do(http.MethodPost, "/ai-chat", `{"messages":[{"role":"user","content":"Hallo"}]}`)

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.Equal(t, "AI Gateway nicht konfiguriert", decodeBody(t, recorder)["error"])
	require.Equal(t, 0, server.upstream.calls())
}

func TestChatRejectsInvalidPayloads(t *testing.T) {
	server := newTestServer(t, "test-key")

	for _, body := range []string{`{`, `{"messages":[]}`, `{"messages":[{"role":"system","content":"x"}]}`} {
		recorder := server.do(http.MethodPost, "/ai-chat", body)
		require.Equal(t, http.StatusBadRequest, recorder.Code, body)
	}
	require.Equal(t, 0, server.upstream.calls())
}

func TestPreflightShortCircuits(t *testing.T) {
	server := newTestServer(t, "test-key")

	recorder := server.do(http.MethodOptions, "/ai-chat", "")

	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Empty(t, recorder.Body.String())
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), "x-client-info")
	require.Equal(t, 0, server.upstream.calls())
}

func TestModelsAndHealth(t *testing.T) {
	server := newTestServer(t, "test-key")

	recorder := server.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "ok", decodeBody(t, recorder)["status"])

	recorder = server.do(http.MethodGet, "/models", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	models := decodeBody(t, recorder)["models"].([]any)
	require.Len(t, models, 6)
	require.Equal(t, "google/gemini-2.5-flash", models[0].(map[string]any)["id"])
}

func TestConversationFlowPersistsChatTurn(t *testing.T) {
	server := newTestServer(t, "test-key")

	recorder := server.do(http.MethodPost, "/conversations", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
	created := decodeBody(t, recorder)
	require.Equal(t, "Neue Konversation", created["title"])
	conversationID := created["id"].(string)

	recorder = server.do(http.MethodPost, "/ai-chat", `{"conversation_id":"`+conversationID+`","messages":[{"role":"user","content":"Hallo"}]}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	events := server.events.snapshot()
	require.Len(t, events, 2)
	require.Equal(t, domain.MessageRoleUser, events[0].Role)
	require.Equal(t, "Hallo zurück", events[1].Content)
	require.Equal(t, "google/gemini-2.5-flash", events[1].AIModel)

	recorder = server.do(http.MethodPost, "/ai-chat", `{"conversation_id":"missing","messages":[{"role":"user","content":"Hallo"}]}`)
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = server.do(http.MethodPost, "/conversations/"+conversationID+"/messages", `{"role":"user","content":"direkt"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder = server.do(http.MethodGet, "/conversations/"+conversationID+"/messages", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, decodeBody(t, recorder)["messages"].([]any), 1)

	recorder = server.do(http.MethodGet, "/conversations?user_id=u1", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, decodeBody(t, recorder)["conversations"].([]any), 1)

	recorder = server.do(http.MethodDelete, "/conversations/"+conversationID, "")
	require.Equal(t, http.StatusNoContent, recorder.Code)
	recorder = server.do(http.MethodDelete, "/conversations/"+conversationID, "")
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGeoAnalyzeEndpoint(t *testing.T) {
	server := newTestServer(t, "test-key")
	server.upstream.body = `{"choices":[{"message":{"role":"assistant","content":"` +
		"```json\\n{\\\"confidence\\\":\\\"hoch\\\"}\\n```" + `"}}]}`

	recorder := server.do(http.MethodPost, "/geo-analyze", `{"image":"data:image/png;base64,AAAA"}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decodeBody(t, recorder)
	require.Equal(t, true, body["success"])
	require.Equal(t, "hoch", body["data"].(map[string]any)["confidence"])

	recorder = server.do(http.MethodPost, "/geo-analyze", `{}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	body = decodeBody(t, recorder)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Image is required", body["error"])
}

func TestChatStreamStopsWhenClientDisconnects(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer upstream.Close()
	defer close(release)

	gateway := ai.NewGatewayClient(ai.GatewayClientConfig{APIKey: "k", BaseURL: upstream.URL})
	api := handlers.NewAPI(handlers.APIDependencies{
		Chat:   service.NewChatService(service.ChatDependencies{Gateway: gateway, Logger: zerolog.Nop()}),
		Logger: zerolog.Nop(),
	})
	handler := NewRouter(RouterDependencies{API: api, Logger: zerolog.Nop(), CORSOrigins: []string{"*"}})

	ctx, cancel := context.WithCancel(context.Background())
	request := httptest.NewRequest(http.MethodPost, "/ai-chat", bytes.NewBufferString(`{"messages":[{"role":"user","content":"Hallo"}]}`)).WithContext(ctx)
	recorder := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(recorder, request)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
}
