package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/chevai-chat/internal/chat"
	"github.com/soyeahso/chevai-chat/internal/config"
	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/store"
)

const testAgentToken = "agent-secret"

type testEnv struct {
	srv    *Server
	router *chat.Router
	http   *httptest.Server
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.Gateway.Auth = config.GatewayAuth{Mode: "token", Token: testAgentToken}
	for _, m := range mutate {
		m(&cfg)
	}

	log := logging.New(nil, "silent")
	router := chat.NewRouter(store.NewMemoryMessageStore(), log,
		chat.WithReplyDelay(func() time.Duration { return 0 }))
	srv := New(cfg, router, log)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		srv.clients.CloseAll()
		ts.Close()
		router.Close()
		srv.authLimiter.close()
	})
	return &testEnv{srv: srv, router: router, http: ts}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.http.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// wsClient drives one WebSocket connection in tests. Events that arrive
// while waiting for a response are buffered.
type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	nextID int
	events []Frame
}

func (e *testEnv) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) read() Frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

func (c *wsClient) call(method string, params any) Frame {
	c.t.Helper()
	c.nextID++
	id := fmt.Sprintf("r%d", c.nextID)
	req, err := NewRequest(id, method, params)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(req))

	for {
		f := c.read()
		if f.Type == FrameTypeResponse && f.ID == id {
			return f
		}
		if f.Type == FrameTypeEvent {
			c.events = append(c.events, f)
		}
	}
}

func (c *wsClient) waitEvent(name string) Frame {
	c.t.Helper()
	for i, f := range c.events {
		if f.Event == name {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return f
		}
	}
	for {
		f := c.read()
		if f.Type == FrameTypeEvent && f.Event == name {
			return f
		}
		if f.Type == FrameTypeEvent {
			c.events = append(c.events, f)
		}
	}
}

func payload[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func requireOK(t *testing.T, f Frame) {
	t.Helper()
	require.NotNil(t, f.OK)
	require.True(t, *f.OK, "response error: %+v", f.Error)
}

func requireErrorCode(t *testing.T, f Frame, code string) {
	t.Helper()
	require.NotNil(t, f.OK)
	require.False(t, *f.OK)
	require.NotNil(t, f.Error)
	assert.Equal(t, code, f.Error.Code)
}

func customerParams(room, body string) domain.InboundMessage {
	return domain.InboundMessage{
		ConversationID: room,
		SenderID:       "cust-1",
		SenderName:     "Lan",
		SenderRole:     "user",
		Body:           body,
		TempID:         "tmp-1",
	}
}

// --- HTTP ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	health := decodeBody[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Agents)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "/nope", body["path"])
}

func TestPostMessage_ForcesCustomerRole(t *testing.T) {
	env := newTestEnv(t)

	in := customerParams("user_1", "còn size M không ạ?")
	in.SenderRole = "agent"
	resp := env.do(t, http.MethodPost, "/api/chat/message", "", in)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := decodeBody[domain.Message](t, resp)
	assert.Equal(t, domain.RoleCustomer, msg.SenderRole)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "tmp-1", msg.TempID)

	resp = env.do(t, http.MethodGet, "/api/chat/history/user_1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[[]domain.Message](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestPostMessage_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/chat/message", "", customerParams("", "hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/chat/message", "", customerParams("user_1", "   "))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, env.http.URL+"/api/chat/message", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw, err := env.http.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestHistory_BadLimit(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/chat/history/user_1?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/chat/history/user_1?limit=5", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAgentRoutes_RequireBearer(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/chat/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/chat/rooms", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/chat/rooms", testAgentToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAgentRoutes_JWT(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Gateway.Auth = config.GatewayAuth{Mode: "jwt", JWTSecret: "s3cret"}
	})
	token, err := IssueAgentToken("s3cret", "", "Mai", time.Hour)
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/api/chat/admin/message", token, domain.InboundMessage{
		ConversationID: "user_1",
		Body:           "Chào bạn, mình là Mai",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decodeBody[domain.Message](t, resp)
	assert.Equal(t, "Mai", msg.SenderName)
	assert.Equal(t, domain.RoleAgent, msg.SenderRole)
}

func TestAgentMessageAndPurge(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/chat/admin/message", testAgentToken, domain.InboundMessage{
		ConversationID: "user_1",
		SenderRole:     "automated",
		Body:           "Shop đã nhận được đơn của bạn",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decodeBody[domain.Message](t, resp)
	assert.Equal(t, domain.RoleAgent, msg.SenderRole)
	assert.Equal(t, "Admin", msg.SenderName)

	resp = env.do(t, http.MethodGet, "/api/chat/rooms", testAgentToken, nil)
	rooms := decodeBody[[]domain.RoomSummary](t, resp)
	require.Len(t, rooms, 1)
	assert.Equal(t, "user_1", rooms[0].ConversationID)

	resp = env.do(t, http.MethodDelete, "/api/chat/admin/room/user_1", testAgentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	purged := decodeBody[map[string]any](t, resp)
	assert.EqualValues(t, 1, purged["deleted"])

	resp = env.do(t, http.MethodGet, "/api/chat/admin/history/user_1", testAgentToken, nil)
	assert.Empty(t, decodeBody[[]domain.Message](t, resp))
}

func TestAgentAuth_LocksOutAfterFailures(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < authRateMaxFails; i++ {
		resp := env.do(t, http.MethodGet, "/api/chat/rooms", "wrong", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/api/chat/rooms", testAgentToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Gateway.RateLimit = config.RateLimitConfig{Requests: 2, WindowSeconds: 60}
	})
	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodGet, "/api/chat/history/user_1", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/api/chat/history/user_1", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Probes outside the chat API are not limited.
	resp = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	preflight := func(env *testEnv, origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, env.http.URL+"/api/chat/message", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		resp, err := env.http.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	closed := newTestEnv(t)
	resp := preflight(closed, "https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	open := newTestEnv(t, func(c *config.Config) {
		c.Gateway.AllowedOrigins = []string{"https://shop.chevai.vn"}
	})
	resp = preflight(open, "https://shop.chevai.vn")
	assert.Equal(t, "https://shop.chevai.vn", resp.Header.Get("Access-Control-Allow-Origin"))
	resp = preflight(open, "https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestResolveBindAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:4000", resolveBindAddr(config.GatewayConfig{Port: 4000}))
	assert.Equal(t, "0.0.0.0:4000", resolveBindAddr(config.GatewayConfig{Port: 4000, Bind: "lan"}))
	assert.Equal(t, "10.1.2.3:4000", resolveBindAddr(config.GatewayConfig{Port: 4000, Bind: "custom", CustomBindHost: "10.1.2.3"}))
}

func TestCheckWebSocketOrigin(t *testing.T) {
	check := checkWebSocketOrigin([]string{"https://shop.chevai.vn"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://shop.chevai.vn")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}

// --- WebSocket ---

func TestWebSocket_JoinAndSend(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	res := c.call(MethodJoinRoom, "user_1")
	requireOK(t, res)
	status := payload[chat.AdminStatus](t, c.waitEvent(chat.EventAdminStatusChanged))
	assert.False(t, status.IsOnline)

	res = c.call(MethodSendMessage, customerParams("user_1", "shop ơi"))
	requireOK(t, res)
	sent := payload[domain.Message](t, res)
	assert.Equal(t, "tmp-1", sent.TempID)

	got := payload[domain.Message](t, c.waitEvent(chat.EventReceiveMessage))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "shop ơi", got.Body)
}

func TestWebSocket_JoinRequiresRoom(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)
	requireErrorCode(t, c.call(MethodJoinRoom, map[string]string{}), CodeInvalidParams)
}

func TestWebSocket_UnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)
	requireErrorCode(t, c.call("bogus", nil), CodeMethodNotFound)
}

func TestWebSocket_AgentRoleRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)
	requireOK(t, c.call(MethodJoinRoom, "user_1"))

	in := customerParams("user_1", "I am the admin")
	in.SenderRole = "admin"
	requireErrorCode(t, c.call(MethodSendMessage, in), CodeForbidden)
	msgErr := payload[chat.MessageError](t, c.waitEvent(chat.EventMessageError))
	assert.Equal(t, "tmp-1", msgErr.TempID)

	in.SenderRole = "ai"
	requireErrorCode(t, c.call(MethodSendMessage, in), CodeForbidden)

	msgs, err := env.router.History(t.Context(), "user_1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestWebSocket_AgentPresence(t *testing.T) {
	env := newTestEnv(t)
	customer := env.dial(t)
	requireOK(t, customer.call(MethodJoinRoom, "user_1"))
	customer.waitEvent(chat.EventAdminStatusChanged)

	agent := env.dial(t)
	requireErrorCode(t, agent.call(MethodAdminLogin, AdminLoginParams{Name: "Mai", Token: "wrong"}), CodeUnauthorized)
	assert.Equal(t, 0, env.router.AgentCount())

	requireOK(t, agent.call(MethodAdminLogin, AdminLoginParams{Name: "Mai", Token: testAgentToken}))
	status := payload[chat.AdminStatus](t, customer.waitEvent(chat.EventAdminStatusChanged))
	assert.True(t, status.IsOnline)
	assert.Equal(t, "Mai", status.AdminName)

	// Agents see every conversation through the admin room.
	in := customerParams("user_1", "cho mình xem áo thun")
	requireOK(t, customer.call(MethodSendMessage, in))
	customer.waitEvent(chat.EventReceiveMessage) // own echo
	got := payload[domain.Message](t, agent.waitEvent(chat.EventReceiveMessage))
	assert.Equal(t, "cho mình xem áo thun", got.Body)

	reply := domain.InboundMessage{ConversationID: "user_1", SenderID: "admin", SenderName: "Mai", SenderRole: "agent", Body: "Dạ có ạ"}
	requireOK(t, agent.call(MethodSendMessage, reply))
	got = payload[domain.Message](t, customer.waitEvent(chat.EventReceiveMessage))
	assert.Equal(t, domain.RoleAgent, got.SenderRole)

	require.NoError(t, agent.conn.Close())
	status = payload[chat.AdminStatus](t, customer.waitEvent(chat.EventAdminStatusChanged))
	assert.False(t, status.IsOnline)
}

func TestWebSocket_AdminOnlyMethods(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)
	requireErrorCode(t, c.call(MethodAdminJoinRoom, "user_1"), CodeForbidden)
	requireErrorCode(t, c.call(MethodJoinRoom, env.router.AdminRoom()), CodeForbidden)
	assert.Empty(t, env.router.Members(env.router.AdminRoom()))
	requireErrorCode(t, c.call(MethodAdminTyping, TypingParams{ConversationID: "user_1", IsTyping: true}), CodeForbidden)

	requireOK(t, c.call(MethodAdminOnline, AdminLoginParams{Token: testAgentToken}))
	requireOK(t, c.call(MethodAdminJoinRoom, "user_1"))
	agents := env.router.Members(env.router.AdminRoom())
	require.Len(t, agents, 1)
	assert.Contains(t, env.router.Members("user_1"), agents[0])

	requireOK(t, c.call(MethodAdminOffline, nil))
	assert.Equal(t, 0, env.router.AgentCount())
}

func TestWebSocket_AdminLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)
	for i := 0; i < authRateMaxFails; i++ {
		requireErrorCode(t, c.call(MethodAdminLogin, AdminLoginParams{Token: "wrong"}), CodeUnauthorized)
	}
	requireErrorCode(t, c.call(MethodAdminLogin, AdminLoginParams{Token: testAgentToken}), CodeRateLimited)
}

func TestWebSocket_HistoryUsesJoinedRoom(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)
	requireOK(t, c.call(MethodJoinRoom, map[string]string{"conversationId": "user_7"}))
	requireOK(t, c.call(MethodSendMessage, customerParams("user_7", "một")))
	requireOK(t, c.call(MethodSendMessage, customerParams("user_7", "hai")))

	res := c.call(MethodGetChatHistory, nil)
	requireOK(t, res)
	msgs := payload[[]domain.Message](t, c.waitEvent(chat.EventChatHistory))
	require.Len(t, msgs, 2)
	assert.Equal(t, "một", msgs[0].Body)

	res = c.call(MethodGetChatHistory, HistoryParams{ConversationID: "user_7", Limit: 1})
	requireOK(t, res)
	msgs = payload[[]domain.Message](t, c.waitEvent(chat.EventChatHistory))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hai", msgs[0].Body)
}

func TestWebSocket_HistoryWithoutRoom(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)
	requireErrorCode(t, c.call(MethodGetChatHistory, nil), CodeInvalidParams)
}

func TestWebSocket_TypingDefaultsToJoinedRoom(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)
	b := env.dial(t)
	requireOK(t, a.call(MethodJoinRoom, "user_1"))
	requireOK(t, b.call(MethodJoinRoom, "user_1"))

	requireOK(t, a.call(MethodTyping, TypingParams{IsTyping: true}))
	typing := payload[chat.TypingStatus](t, b.waitEvent(chat.EventUserTyping))
	assert.True(t, typing.IsTyping)
	assert.Equal(t, "user_1", typing.ConversationID)
}
