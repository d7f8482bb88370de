package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/chevai-chat/internal/config"
	"github.com/soyeahso/chevai-chat/internal/logging"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_OnAndEmit(t *testing.T) {
	m := testManager()

	var got Payload
	m.On(EventMessagePersisted, "test", func(_ context.Context, p Payload) error {
		got = p
		return nil
	})

	m.Emit(context.Background(), EventMessagePersisted, map[string]any{"room": "user_1"})
	assert.Equal(t, EventMessagePersisted, got.Event)
	assert.Equal(t, "user_1", got.Data["room"])
}

func TestManager_EmitOrderAndErrors(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventRoomPurged, "first", func(context.Context, Payload) error {
		order = append(order, "first")
		return errors.New("boom")
	})
	m.On(EventRoomPurged, "second", func(context.Context, Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventRoomPurged, nil)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	m.Emit(context.Background(), EventGatewayStart, nil)
	m.EmitAsync(context.Background(), EventGatewayStart, nil)
	m.Wait()
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var removed, kept int
	m.On(EventAgentPresence, "remove-me", func(context.Context, Payload) error { removed++; return nil })
	m.On(EventAgentPresence, "keep-me", func(context.Context, Payload) error { kept++; return nil })

	m.Off(EventAgentPresence, "remove-me")
	m.Emit(context.Background(), EventAgentPresence, nil)

	assert.Zero(t, removed)
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, m.Count(EventAgentPresence))
}

func TestManager_EmitAsyncWait(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		m.On(EventMessageSending, name, func(context.Context, Payload) error {
			count.Add(1)
			return nil
		})
	}

	m.EmitAsync(context.Background(), EventMessageSending, nil)
	m.Wait()
	assert.Equal(t, int32(3), count.Load())
}

func TestManager_Events(t *testing.T) {
	m := testManager()
	m.On(EventGatewayStart, "h1", func(context.Context, Payload) error { return nil })
	m.On(EventMessageReceived, "h2", func(context.Context, Payload) error { return nil })

	assert.ElementsMatch(t, []string{EventGatewayStart, EventMessageReceived}, m.Events())
	require.Contains(t, AllEvents, EventRoomPurged)
}

func TestCommandHandler_ReceivesPayloadOnStdin(t *testing.T) {
	out := filepath.Join(t.TempDir(), "payload.json")
	h := CommandHandler(config.HookEntry{Command: "cat > " + out})

	err := h(context.Background(), Payload{Event: EventRoomPurged, Data: map[string]any{"room": "user_9"}})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"room_purged","data":{"room":"user_9"}}`, string(data))
}

func TestCommandHandler_ReportsFailure(t *testing.T) {
	h := CommandHandler(config.HookEntry{Command: "echo nope >&2; exit 3"})
	err := h(context.Background(), Payload{Event: EventAgentPresence})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestCommandHandler_Timeout(t *testing.T) {
	h := CommandHandler(config.HookEntry{Command: "sleep 5", Timeout: 50})
	assert.Error(t, h(context.Background(), Payload{Event: EventAgentPresence}))
}

func TestRegisterConfig(t *testing.T) {
	m := testManager()
	n := RegisterConfig(m, config.HooksConfig{
		MessagePersisted: []config.HookEntry{{Command: "true"}, {Command: "  "}},
		RoomPurged:       []config.HookEntry{{Command: "true"}},
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Count(EventMessagePersisted))
	assert.Equal(t, 1, m.Count(EventRoomPurged))
	assert.Zero(t, m.Count(EventAgentPresence))
}
