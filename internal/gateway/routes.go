package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/soyeahso/chevai-chat/internal/metrics"
)

// Handler builds the HTTP handler serving the API and the WebSocket.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.Gateway.AllowedOrigins))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", s.handleWebSocket)

	window := time.Duration(s.cfg.Gateway.RateLimit.WindowSeconds) * time.Second
	r.Route("/api/chat", func(r chi.Router) {
		if s.cfg.Gateway.RateLimit.Requests > 0 && window > 0 {
			r.Use(rateLimitMiddleware(s.cfg.Gateway.RateLimit.Requests, window))
		}

		r.Get("/history/{roomId}", s.handleHistory)
		r.Post("/message", s.handlePostMessage)

		r.Group(func(r chi.Router) {
			r.Use(s.agentAuthMiddleware)
			r.Get("/rooms", s.handleRooms)
			r.Get("/admin/history/{roomId}", s.handleHistory)
			r.Post("/admin/message", s.handleAgentMessage)
			r.Delete("/admin/room/{roomId}", s.handlePurgeRoom)
		})
	})

	r.NotFound(handleNotFound)
	return r
}
