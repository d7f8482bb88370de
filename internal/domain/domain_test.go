package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"customer", RoleCustomer, true},
		{"user", RoleCustomer, true},
		{" Admin ", RoleAgent, true},
		{"agent", RoleAgent, true},
		{"ai", RoleAutomated, true},
		{"automated", RoleAutomated, true},
		{"", "", false},
		{"bot", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.False(t, Role("user").Valid())
	assert.True(t, RoleAgent.Valid())
}

func TestMessageJSON_WireNames(t *testing.T) {
	msg := Message{
		ID:             "m1",
		ConversationID: "user_1",
		SenderID:       "u1",
		SenderName:     "Lan",
		SenderRole:     RoleCustomer,
		Body:           "xin chào",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"conversationId":"user_1"`)
	assert.Contains(t, raw, `"senderRole":"customer"`)
	assert.NotContains(t, raw, "mediaUrl")
	assert.NotContains(t, raw, "tempId")
}

func TestIsBottomWear(t *testing.T) {
	assert.True(t, IsBottomWear("Jogger"))
	assert.True(t, IsBottomWear("Cargo Pants"))
	assert.False(t, IsBottomWear("T-shirt"))
	assert.False(t, IsBottomWear("Hoodie"))
}

func TestCatalogItemFormatting(t *testing.T) {
	item := CatalogItem{ID: "p1", Name: "Áo Thun Basic", Price: 249000}
	assert.Equal(t, "[Áo Thun Basic](/product/p1)", item.Link())
	assert.Equal(t, "249k", item.PriceLabel())
	assert.Equal(t, "250k", CatalogItem{Price: 249500}.PriceLabel())
}
