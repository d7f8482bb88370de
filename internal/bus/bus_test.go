package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/logging"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix string
		msg    domain.Message
		want   string
	}{
		{"chat", domain.Message{ConversationID: "user_1", SenderRole: domain.RoleCustomer}, "chat.user_1.msg.customer"},
		{"", domain.Message{ConversationID: "user_2", SenderRole: domain.RoleAutomated}, "chat.user_2.msg.automated"},
		{"shop.chat", domain.Message{ConversationID: "a.b*c>d e", SenderRole: domain.RoleAgent}, "shop.chat.a_b_c_d_e.msg.agent"},
		{"chat", domain.Message{}, "chat._.msg._"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.prefix, tt.msg))
		})
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	var gotSubject string
	var gotData []byte
	p := newPublisher("", logging.New(nil, "silent"), func(subject string, data []byte) error {
		gotSubject, gotData = subject, data
		return nil
	})

	msg := domain.Message{ID: "m1", ConversationID: "user_1", SenderRole: domain.RoleCustomer, Body: "hi"}
	require.NoError(t, p.Publish(context.Background(), msg))

	assert.Equal(t, "chat.user_1.msg.customer", gotSubject)
	var decoded domain.Message
	require.NoError(t, json.Unmarshal(gotData, &decoded))
	assert.Equal(t, "m1", decoded.ID)
	assert.Equal(t, "hi", decoded.Body)
	p.Close()
}

func TestNATSPublisher_Errors(t *testing.T) {
	p := newPublisher("chat", logging.New(nil, "silent"), func(string, []byte) error {
		return errors.New("nats: connection closed")
	})
	err := p.Publish(context.Background(), domain.Message{ConversationID: "user_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.user_1.msg._")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, domain.Message{}), context.Canceled)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), domain.Message{}))
	p.Close()
}
