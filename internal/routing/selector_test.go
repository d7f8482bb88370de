package routing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		role       domain.Role
		agents     int
		wantReply  bool
		wantSummon bool
		wantBody   string
	}{
		{"no agent customer", "áo thun nào đẹp?", domain.RoleCustomer, 0, true, false, "áo thun nào đẹp?"},
		{"no agent customer summons", "@ai áo thun", domain.RoleCustomer, 0, true, true, "áo thun"},
		{"agent present no token", "áo thun nào đẹp?", domain.RoleCustomer, 1, false, false, "áo thun nào đẹp?"},
		{"agent present token", "@ai cho mình xem hoodie", domain.RoleCustomer, 2, true, true, "cho mình xem hoodie"},
		{"token case insensitive", "@AI   hoodie", domain.RoleCustomer, 1, true, true, "hoodie"},
		{"token mid sentence", "cho hỏi @ai size M", domain.RoleCustomer, 1, true, true, "cho hỏi size M"},
		{"token repeated", "@ai @ai quần", domain.RoleCustomer, 1, true, true, "quần"},
		{"agent message", "@ai hello", domain.RoleAgent, 0, false, false, "@ai hello"},
		{"automated message", "hello", domain.RoleAutomated, 0, false, false, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Select(tt.body, tt.role, tt.agents)
			assert.Equal(t, tt.wantReply, d.Respond)
			assert.Equal(t, tt.wantSummon, d.Summoned)
			assert.Equal(t, tt.wantBody, d.Body)
		})
	}
}

func TestSelectTruthTable(t *testing.T) {
	bodies := []string{"", "xin chào", "@ai", "cho xem @ai quần jogger", "ok"}
	for agents := 0; agents < 4; agents++ {
		for _, body := range bodies {
			t.Run(fmt.Sprintf("%d/%q", agents, body), func(t *testing.T) {
				d := Select(body, domain.RoleCustomer, agents)
				switch {
				case agents == 0:
					assert.True(t, d.Respond)
				case d.Summoned:
					assert.True(t, d.Respond)
					assert.NotContains(t, d.Body, "@ai")
				default:
					assert.False(t, d.Respond)
				}
			})
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	first := Select("@ai quần", domain.RoleCustomer, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Select("@ai quần", domain.RoleCustomer, 1))
	}
}

func TestCustomToken(t *testing.T) {
	s := NewSelector("!bot")
	assert.Equal(t, "!bot", s.Token())

	d := s.Select("!BOT giá bao nhiêu", domain.RoleCustomer, 1)
	assert.True(t, d.Respond)
	assert.Equal(t, "giá bao nhiêu", d.Body)

	d = s.Select("@ai giá bao nhiêu", domain.RoleCustomer, 1)
	assert.False(t, d.Respond)
}

func TestEmptyTokenFallsBack(t *testing.T) {
	assert.Equal(t, DefaultSummonToken, NewSelector("  ").Token())
}
