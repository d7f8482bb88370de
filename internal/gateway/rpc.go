package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/soyeahso/chevai-chat/internal/chat"
	"github.com/soyeahso/chevai-chat/internal/domain"
)

// RequestHandler processes one request frame.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Debug().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message})
}

// Params decodes the request params into target.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

func (rc *RequestContext) isAgent() bool {
	return rc.Server.router.IsAgent(rc.Client.ConnID)
}

// Client event names.
const (
	MethodJoinRoom         = "join_room"
	MethodCheckAdminStatus = "check_admin_status"
	MethodSendMessage      = "send_message"
	MethodAdminLogin       = "admin_login"
	MethodAdminOnline      = "adminOnline"
	MethodAdminOffline     = "adminOffline"
	MethodAdminTyping      = "admin_typing"
	MethodTyping           = "typing"
	MethodAdminJoinRoom    = "admin_join_room"
	MethodAdminLeaveRoom   = "admin_leave_room"
	MethodGetChatHistory   = "getChatHistory"
	MethodMessageRead      = "messageRead"
)

func (s *Server) registerRPCHandlers() {
	s.handlers[MethodJoinRoom] = s.rpcJoinRoom
	s.handlers[MethodCheckAdminStatus] = s.rpcCheckAdminStatus
	s.handlers[MethodSendMessage] = s.rpcSendMessage
	s.handlers[MethodAdminLogin] = s.rpcAdminLogin
	s.handlers[MethodAdminOnline] = s.rpcAdminLogin
	s.handlers[MethodAdminOffline] = s.rpcAdminOffline
	s.handlers[MethodAdminTyping] = s.rpcAdminTyping
	s.handlers[MethodTyping] = s.rpcTyping
	s.handlers[MethodAdminJoinRoom] = s.rpcAdminJoinRoom
	s.handlers[MethodAdminLeaveRoom] = s.rpcAdminLeaveRoom
	s.handlers[MethodGetChatHistory] = s.rpcGetChatHistory
	s.handlers[MethodMessageRead] = s.rpcMessageRead
}

// Methods returns the registered request methods.
func (s *Server) Methods() []string {
	out := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		out = append(out, m)
	}
	return out
}

func (s *Server) rpcJoinRoom(rc *RequestContext) {
	room, err := stringParam(rc.Frame.Params, "conversationId")
	if err != nil {
		rc.RespondError(CodeInvalidParams, "conversationId is required")
		return
	}
	if err := s.router.Join(rc.Client.ConnID, room); err != nil {
		if errors.Is(err, chat.ErrAgentOnly) {
			rc.RespondError(CodeForbidden, err.Error())
			return
		}
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Client.setRoom(room)
	rc.Respond(map[string]string{"conversationId": room})
}

func (s *Server) rpcCheckAdminStatus(rc *RequestContext) {
	status := s.router.Status()
	rc.Client.Emit(chat.EventAdminStatusChanged, status)
	rc.Respond(status)
}

func (s *Server) rpcSendMessage(rc *RequestContext) {
	var in domain.InboundMessage
	if err := rc.Params(&in); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	// Only agent connections may speak as agents and nobody may speak as
	// the automated responder.
	if role, ok := domain.ParseRole(in.SenderRole); ok {
		forbidden := role == domain.RoleAutomated || (role == domain.RoleAgent && !rc.isAgent())
		if forbidden {
			rc.Client.Emit(chat.EventMessageError, chat.MessageError{Error: "sender role not permitted", TempID: in.TempID})
			rc.RespondError(CodeForbidden, "sender role not permitted")
			return
		}
	}

	msg, err := s.router.PostMessage(rc.Ctx, rc.Client.ConnID, in)
	if err != nil {
		code := CodeInternal
		if errors.Is(err, chat.ErrInvalidMessage) {
			code = CodeInvalidParams
		}
		rc.RespondError(code, err.Error())
		return
	}
	rc.Respond(msg)
}

func (s *Server) rpcAdminLogin(rc *RequestContext) {
	remote := rc.Client.RemoteAddr
	if !s.authLimiter.allow(remote) {
		s.log.Warn().Str("remote", remote).Msg("agent login rate limited")
		rc.RespondError(CodeRateLimited, "too many failed attempts")
		return
	}

	var p AdminLoginParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	res := Authorize(s.auth, Credentials{Token: p.Token, Password: p.Password})
	if !res.OK {
		s.authLimiter.recordFailure(remote)
		s.log.Warn().Str("connId", rc.Client.ConnID).Str("reason", res.Reason).Msg("agent login failed")
		rc.RespondError(CodeUnauthorized, res.Reason)
		return
	}

	name := p.Name
	if name == "" {
		name = res.Subject
	}
	if name == "" {
		name = "Admin"
	}
	if err := s.router.AgentConnect(rc.Client.ConnID, chat.AgentInfo{Name: name}); err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	s.log.Info().Str("connId", rc.Client.ConnID).Str("agent", name).Str("method", res.Method).Msg("agent authenticated")
	rc.Respond(map[string]any{"name": name, "agents": s.router.AgentCount()})
}

func (s *Server) rpcAdminOffline(rc *RequestContext) {
	s.router.AgentDisconnect(rc.Client.ConnID)
	rc.Respond(map[string]any{"agents": s.router.AgentCount()})
}

func (s *Server) typing(rc *RequestContext, role domain.Role) {
	var p TypingParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.ConversationID == "" {
		p.ConversationID = rc.Client.Room()
	}
	if err := s.router.Typing(rc.Client.ConnID, p.ConversationID, p.IsTyping, role); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	rc.Respond(nil)
}

func (s *Server) rpcAdminTyping(rc *RequestContext) {
	if !rc.isAgent() {
		rc.RespondError(CodeForbidden, "agent login required")
		return
	}
	s.typing(rc, domain.RoleAgent)
}

func (s *Server) rpcTyping(rc *RequestContext) {
	s.typing(rc, domain.RoleCustomer)
}

func (s *Server) rpcAdminJoinRoom(rc *RequestContext) {
	if !rc.isAgent() {
		rc.RespondError(CodeForbidden, "agent login required")
		return
	}
	s.rpcJoinRoom(rc)
}

func (s *Server) rpcAdminLeaveRoom(rc *RequestContext) {
	if !rc.isAgent() {
		rc.RespondError(CodeForbidden, "agent login required")
		return
	}
	room, err := stringParam(rc.Frame.Params, "conversationId")
	if err != nil {
		rc.RespondError(CodeInvalidParams, "conversationId is required")
		return
	}
	s.router.Leave(rc.Client.ConnID, room)
	rc.Respond(map[string]string{"conversationId": room})
}

// rpcGetChatHistory answers with a chatHistory event. Without an explicit
// conversation id the client's most recently joined room is used.
func (s *Server) rpcGetChatHistory(rc *RequestContext) {
	var p HistoryParams
	if len(rc.Frame.Params) > 0 && rc.Frame.Params[0] == '"' {
		room, err := stringParam(rc.Frame.Params, "conversationId")
		if err != nil {
			rc.RespondError(CodeInvalidParams, err.Error())
			return
		}
		p.ConversationID = room
	} else if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.ConversationID == "" {
		p.ConversationID = rc.Client.Room()
	}
	if p.ConversationID == "" {
		rc.RespondError(CodeInvalidParams, "conversationId is required")
		return
	}

	msgs, err := s.router.History(rc.Ctx, p.ConversationID, p.Limit)
	if err != nil {
		s.log.Error().Err(err).Str("room", p.ConversationID).Msg("history failed")
		rc.RespondError(CodeInternal, "failed to load history")
		return
	}
	rc.Client.Emit(chat.EventChatHistory, msgs)
	rc.Respond(map[string]any{"conversationId": p.ConversationID, "count": len(msgs)})
}

func (s *Server) rpcMessageRead(rc *RequestContext) {
	id, err := stringParam(rc.Frame.Params, "messageId")
	if err != nil {
		rc.RespondError(CodeInvalidParams, "messageId is required")
		return
	}
	if err := s.router.MarkRead(rc.Client.ConnID, id); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	rc.Respond(nil)
}
