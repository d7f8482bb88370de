package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/chevai-chat/internal/chat"
	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/version"
)

const maxBodyBytes = 64 << 10

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Connections int    `json:"connections"`
	Agents      int    `json:"agents"`
	Uptime      string `json:"uptime,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Version:     version.Version,
		Connections: s.clients.Count(),
		Agents:      s.router.AgentCount(),
	}
	if !s.startedAt.IsZero() {
		resp.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "roomId")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs, err := s.router.History(r.Context(), room, limit)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func decodeInbound(w http.ResponseWriter, r *http.Request) (domain.InboundMessage, bool) {
	var in domain.InboundMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return in, false
	}
	return in, true
}

// handlePostMessage accepts a customer message. The role is always customer.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInbound(w, r)
	if !ok {
		return
	}
	in.SenderRole = string(domain.RoleCustomer)

	msg, err := s.router.PostMessage(r.Context(), "", in)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleAgentMessage accepts an agent message. The role is always agent.
func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInbound(w, r)
	if !ok {
		return
	}
	in.SenderRole = string(domain.RoleAgent)
	if in.SenderName == "" {
		in.SenderName = agentName(r.Context())
	}
	if in.SenderName == "" {
		in.SenderName = "Admin"
	}
	if in.SenderID == "" {
		in.SenderID = "admin"
	}

	msg, err := s.router.PostMessage(r.Context(), "", in)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.router.Rooms(r.Context())
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handlePurgeRoom(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "roomId")
	n, err := s.router.Purge(r.Context(), room)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversationId": room, "deleted": n})
}

func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrInvalidMessage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error().Err(err).Msg("chat request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
