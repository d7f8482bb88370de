package chat

import (
	"context"
	"time"

	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/hooks"
	"github.com/soyeahso/chevai-chat/internal/metrics"
	"github.com/soyeahso/chevai-chat/internal/routing"
)

// startReply runs the automated reply pipeline for a room in the
// background. It does nothing once the router is closed.
func (r *Router) startReply(room string, d routing.Decision) {
	r.lifeMu.Lock()
	if r.closed {
		r.lifeMu.Unlock()
		return
	}
	r.replies.Add(1)
	r.lifeMu.Unlock()

	go func() {
		defer r.replies.Done()
		r.runReply(context.Background(), room, d)
	}()
}

func (r *Router) runReply(ctx context.Context, room string, d routing.Decision) {
	for _, c := range r.roomMembers(room, "") {
		r.emit(c, EventAITypingStart, AITyping{ConversationID: room})
	}

	msg := domain.Message{
		ConversationID: room,
		SenderID:       AutomatedSenderID,
		SenderRole:     domain.RoleAutomated,
	}

	reply, err := r.responder.Respond(ctx, room, d.Body)
	if err != nil {
		r.log.Warn().Err(err).Str("room", room).Msg("automated reply failed, sending fallback notice")
		msg.SenderName = FallbackSenderName
		msg.Body = FallbackNotice
	} else {
		msg.SenderName = automatedSender(reply.Provider, d.Summoned)
		msg.Body = reply.Text
		msg.MediaURL = reply.MediaURL
	}

	if delay := r.delay(); delay > 0 {
		t := time.NewTimer(delay)
		<-t.C
	}

	for _, c := range r.roomMembers(room, "") {
		r.emit(c, EventAITypingStop, AITyping{ConversationID: room})
	}

	r.hooks.Emit(ctx, hooks.EventMessageSending, messageData(msg))

	if _, err := r.deliver(ctx, msg); err != nil {
		metrics.MessageErrorsTotal.WithLabelValues("persist").Inc()
		r.log.Error().Err(err).Str("room", room).Msg("failed to persist automated reply")
	}
}
