package httpserver

import (
	"net/http"

	"github.com/jarvis-assistant/jarvis-back/internal/http/handlers"
	"github.com/jarvis-assistant/jarvis-back/internal/http/middleware"
	"github.com/rs/zerolog"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         zerolog.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", deps.API.Health)
	mux.HandleFunc("GET /models", deps.API.Models)
	mux.HandleFunc("POST /ai-chat", deps.API.Chat)
	mux.HandleFunc("POST /geo-analyze", deps.API.GeoAnalyze)
	mux.HandleFunc("GET /conversations", deps.API.ListConversations)
	mux.HandleFunc("POST /conversations", deps.API.CreateConversation)
	mux.HandleFunc("DELETE /conversations/{id}", deps.API.DeleteConversation)
	mux.HandleFunc("GET /conversations/{id}/messages", deps.API.ListMessages)
	mux.HandleFunc("POST /conversations/{id}/messages", deps.API.CreateMessage)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
		ExposedHeaders: []string{handlers.HeaderModel, handlers.HeaderTask, "X-Request-Id"},
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
