package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/hooks"
	"github.com/soyeahso/chevai-chat/internal/metrics"
)

var tracer = otel.Tracer("github.com/soyeahso/chevai-chat/internal/chat")

// validate turns an inbound message into an unpersisted Message.
func validate(in domain.InboundMessage) (domain.Message, error) {
	room := strings.TrimSpace(in.ConversationID)
	if room == "" {
		return domain.Message{}, fmt.Errorf("%w: missing conversation id", ErrInvalidMessage)
	}
	if strings.TrimSpace(in.Body) == "" {
		return domain.Message{}, fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	role, ok := domain.ParseRole(in.SenderRole)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: unknown sender role %q", ErrInvalidMessage, in.SenderRole)
	}
	return domain.Message{
		ConversationID: room,
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		SenderRole:     role,
		Body:           in.Body,
		MediaURL:       in.MediaURL,
		TempID:         in.TempID,
	}, nil
}

// PostMessage validates, persists and broadcasts a message, then starts an
// automated reply when the responder is selected. Failures are reported to
// the originating connection as message_error and nothing is broadcast.
func (r *Router) PostMessage(ctx context.Context, originConnID string, in domain.InboundMessage) (domain.Message, error) {
	ctx, span := tracer.Start(ctx, "chat.PostMessage")
	defer span.End()
	span.SetAttributes(attribute.String("chat.conversation_id", in.ConversationID))

	msg, err := validate(in)
	if err != nil {
		metrics.MessageErrorsTotal.WithLabelValues("invalid").Inc()
		r.reject(originConnID, in.TempID, err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Message{}, err
	}

	r.hooks.Emit(ctx, hooks.EventMessageReceived, messageData(msg))

	persisted, err := r.deliver(ctx, msg)
	if err != nil {
		metrics.MessageErrorsTotal.WithLabelValues("persist").Inc()
		r.log.Error().Err(err).Str("room", msg.ConversationID).Msg("failed to persist message")
		r.reject(originConnID, in.TempID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Message{}, fmt.Errorf("persisting message: %w", err)
	}

	if persisted.SenderRole == domain.RoleCustomer && r.responder != nil {
		decision := r.selector.Select(persisted.Body, persisted.SenderRole, r.AgentCount())
		span.SetAttributes(attribute.Bool("chat.automated_reply", decision.Respond))
		if decision.Respond {
			r.startReply(persisted.ConversationID, decision)
		}
	}
	return persisted, nil
}

// deliver persists msg with a clamped server timestamp and broadcasts it to
// the room and the admin room. The room lock is held throughout so that
// broadcast order matches persistence order.
func (r *Router) deliver(ctx context.Context, msg domain.Message) (domain.Message, error) {
	st := r.roomState(msg.ConversationID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.loaded {
		last, err := r.store.History(ctx, msg.ConversationID, 1)
		if err != nil {
			return domain.Message{}, err
		}
		if len(last) > 0 {
			st.lastAt = last[0].CreatedAt
		}
		st.loaded = true
	}

	msg.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	if msg.CreatedAt.Before(st.lastAt) {
		msg.CreatedAt = st.lastAt
	}

	tempID := msg.TempID
	persisted, err := r.store.Append(ctx, msg)
	if err != nil {
		return domain.Message{}, err
	}
	st.lastAt = persisted.CreatedAt
	persisted.TempID = tempID

	for _, c := range r.audience(persisted.ConversationID, "") {
		r.emit(c, EventReceiveMessage, persisted)
	}

	metrics.MessagesTotal.WithLabelValues(string(persisted.SenderRole)).Inc()
	if err := r.publisher.Publish(ctx, persisted); err != nil {
		r.log.Warn().Err(err).Str("room", persisted.ConversationID).Msg("failed to publish message")
	}
	r.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventMessagePersisted, messageData(persisted))

	r.log.Debug().
		Str("room", persisted.ConversationID).
		Str("id", persisted.ID).
		Str("role", string(persisted.SenderRole)).
		Msg("message delivered")
	return persisted, nil
}

func (r *Router) reject(connID, tempID string, err error) {
	if c, ok := r.conn(connID); ok {
		r.emit(c, EventMessageError, MessageError{Error: err.Error(), TempID: tempID})
	}
}

func messageData(m domain.Message) map[string]any {
	return map[string]any{
		"id":             m.ID,
		"conversationId": m.ConversationID,
		"senderId":       m.SenderID,
		"senderName":     m.SenderName,
		"senderRole":     string(m.SenderRole),
		"body":           m.Body,
		"mediaUrl":       m.MediaURL,
	}
}

// Typing relays a typing indicator to a room. Agent typing goes out as
// admin_typing to every member; customer typing goes out as user_typing to
// everyone but the sender.
func (r *Router) Typing(originConnID, conversationID string, isTyping bool, role domain.Role) error {
	if conversationID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidMessage)
	}
	status := TypingStatus{ConversationID: conversationID, IsTyping: isTyping}

	switch role {
	case domain.RoleAgent:
		for _, c := range r.roomMembers(conversationID, "") {
			r.emit(c, EventAdminTyping, status)
		}
	case domain.RoleCustomer:
		for _, c := range r.roomMembers(conversationID, originConnID) {
			r.emit(c, EventUserTyping, status)
		}
	default:
		return fmt.Errorf("%w: typing role %q", ErrInvalidMessage, role)
	}
	return nil
}

// History returns the most recent messages of a conversation in
// chronological order. A non-positive limit selects the default and limits
// above MaxHistoryLimit are capped.
func (r *Router) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation id", ErrInvalidMessage)
	}
	if limit <= 0 {
		limit = r.historyLimit
	}
	limit = min(limit, MaxHistoryLimit)

	msgs, err := r.store.History(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// Rooms summarizes every conversation for the agent console.
func (r *Router) Rooms(ctx context.Context) ([]domain.RoomSummary, error) {
	rooms, err := r.store.Rooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	return rooms, nil
}

// Purge deletes a conversation's messages and clears its context. It
// returns the number of messages removed.
func (r *Router) Purge(ctx context.Context, conversationID string) (int, error) {
	if conversationID == "" {
		return 0, fmt.Errorf("%w: missing conversation id", ErrInvalidMessage)
	}

	st := r.roomState(conversationID)
	st.mu.Lock()
	n, err := r.store.DeleteRoom(ctx, conversationID)
	if err == nil {
		st.lastAt = time.Time{}
		st.loaded = true
	}
	st.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("purging room: %w", err)
	}

	if r.contexts != nil {
		r.contexts.Clear(conversationID)
	}
	r.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventRoomPurged, map[string]any{
		"conversationId": conversationID,
		"deleted":        n,
	})
	r.log.Info().Str("room", conversationID).Int("deleted", n).Msg("room purged")
	return n, nil
}

// MarkRead relays a read receipt to every other connection. Receipts are
// not persisted.
func (r *Router) MarkRead(connID, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidMessage)
	}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for id, c := range r.conns {
		if id != connID {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		r.emit(c, EventMessageRead, ReadReceipt{MessageID: messageID})
	}
	return nil
}
