package chat

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/soyeahso/chevai-chat/internal/bus"
	"github.com/soyeahso/chevai-chat/internal/convctx"
	"github.com/soyeahso/chevai-chat/internal/hooks"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/metrics"
	"github.com/soyeahso/chevai-chat/internal/routing"
)

// Router is the session router. All methods are safe for concurrent use.
type Router struct {
	store     MessageStore
	responder Responder
	contexts  *convctx.Store
	selector  *routing.Selector
	hooks     *hooks.Manager
	publisher bus.Publisher
	log       *logging.Logger

	adminRoom    string
	historyLimit int
	delay        func() time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	conns  map[string]Conn
	rooms  map[string]map[string]struct{} // room -> conn ids
	joined map[string]map[string]struct{} // conn id -> rooms
	agents map[string]AgentInfo

	// presenceMu orders agent transitions together with their broadcasts.
	presenceMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*roomState

	lifeMu  sync.Mutex
	closed  bool
	replies sync.WaitGroup
}

// roomState serializes writes to one conversation.
type roomState struct {
	mu     sync.Mutex
	loaded bool
	lastAt time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithResponder enables automated replies.
func WithResponder(r Responder) Option {
	return func(rt *Router) { rt.responder = r }
}

// WithContexts sets the conversation context store cleared on purge.
func WithContexts(s *convctx.Store) Option {
	return func(rt *Router) { rt.contexts = s }
}

// WithSelector replaces the default responder selector.
func WithSelector(s *routing.Selector) Option {
	return func(rt *Router) { rt.selector = s }
}

// WithHooks sets the hook manager for chat events.
func WithHooks(m *hooks.Manager) Option {
	return func(rt *Router) { rt.hooks = m }
}

// WithPublisher forwards every persisted message to p.
func WithPublisher(p bus.Publisher) Option {
	return func(rt *Router) { rt.publisher = p }
}

// WithAdminRoom names the broadcast group every agent joins.
func WithAdminRoom(room string) Option {
	return func(rt *Router) {
		if room != "" {
			rt.adminRoom = room
		}
	}
}

// WithHistoryLimit sets the default number of messages History returns.
func WithHistoryLimit(n int) Option {
	return func(rt *Router) {
		if n > 0 {
			rt.historyLimit = min(n, MaxHistoryLimit)
		}
	}
}

// WithReplyDelay sets the function that picks the pause before an
// automated reply is delivered.
func WithReplyDelay(delay func() time.Duration) Option {
	return func(rt *Router) { rt.delay = delay }
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(rt *Router) { rt.now = now }
}

// JitterDelay returns a delay function uniformly distributed in [lo, hi].
func JitterDelay(lo, hi time.Duration) func() time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	return func() time.Duration {
		if hi == lo {
			return lo
		}
		return lo + rand.N(hi-lo+1)
	}
}

// NewRouter creates a Router backed by store.
func NewRouter(store MessageStore, log *logging.Logger, opts ...Option) *Router {
	r := &Router{
		store:        store,
		selector:     routing.NewSelector(routing.DefaultSummonToken),
		publisher:    bus.Nop{},
		log:          log.Sub("chat"),
		adminRoom:    DefaultAdminRoom,
		historyLimit: DefaultHistoryLimit,
		delay:        JitterDelay(defaultReplyDelayMin*time.Millisecond, defaultReplyDelayMax*time.Millisecond),
		now:          time.Now,
		conns:        make(map[string]Conn),
		rooms:        make(map[string]map[string]struct{}),
		joined:       make(map[string]map[string]struct{}),
		agents:       make(map[string]AgentInfo),
		locks:        make(map[string]*roomState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AdminRoom returns the name of the agent broadcast group.
func (r *Router) AdminRoom() string { return r.adminRoom }

// Register starts tracking conn.
func (r *Router) Register(conn Conn) {
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	n := len(r.conns)
	r.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(n))
	r.log.Debug().Str("connId", conn.ID()).Msg("connection registered")
}

// Unregister forgets a connection, ending its agent session and removing it
// from every room.
func (r *Router) Unregister(connID string) {
	r.AgentDisconnect(connID)

	r.mu.Lock()
	for room := range r.joined[connID] {
		r.removeMemberLocked(room, connID)
	}
	delete(r.joined, connID)
	delete(r.conns, connID)
	n := len(r.conns)
	r.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(n))
	r.log.Debug().Str("connId", connID).Msg("connection unregistered")
}

func (r *Router) addMemberLocked(room, connID string) {
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	if r.joined[connID] == nil {
		r.joined[connID] = make(map[string]struct{})
	}
	r.joined[connID][room] = struct{}{}
}

func (r *Router) removeMemberLocked(room, connID string) {
	if members := r.rooms[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms := r.joined[connID]; rooms != nil {
		delete(rooms, room)
	}
}

// Join adds a connection to a conversation room and tells it whether an
// agent is online. Joining has no presence side effect.
func (r *Router) Join(connID, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidMessage
	}

	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConn
	}
	if _, agent := r.agents[connID]; conversationID == r.adminRoom && !agent {
		r.mu.Unlock()
		return ErrAgentOnly
	}
	r.addMemberLocked(conversationID, connID)
	status := r.statusLocked()
	r.mu.Unlock()

	r.log.Debug().Str("connId", connID).Str("room", conversationID).Msg("joined room")
	r.emit(conn, EventAdminStatusChanged, status)
	return nil
}

// Leave removes a connection from a conversation room.
func (r *Router) Leave(connID, conversationID string) {
	r.mu.Lock()
	r.removeMemberLocked(conversationID, connID)
	r.mu.Unlock()
}

// Members returns the connection ids in a room.
func (r *Router) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	return ids
}

// AgentConnect marks a connection as a human agent and adds it to the admin
// room. The first agent to come online is announced to every non-agent
// connection.
func (r *Router) AgentConnect(connID string, info AgentInfo) error {
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	r.mu.Lock()
	if _, ok := r.conns[connID]; !ok {
		r.mu.Unlock()
		return ErrUnknownConn
	}
	wasEmpty := len(r.agents) == 0
	r.agents[connID] = info
	r.addMemberLocked(r.adminRoom, connID)
	count := len(r.agents)
	var targets []Conn
	if wasEmpty {
		targets = r.nonAgentsLocked()
	}
	r.mu.Unlock()

	metrics.AgentsOnline.Set(float64(count))
	r.log.Info().Str("connId", connID).Str("agent", info.Name).Int("agents", count).Msg("agent online")

	if wasEmpty {
		status := AdminStatus{IsOnline: true, AdminName: info.Name}
		for _, c := range targets {
			r.emit(c, EventAdminStatusChanged, status)
		}
		r.hooks.EmitAsync(context.Background(), hooks.EventAgentPresence, map[string]any{
			"online": true,
			"agent":  info.Name,
		})
	}
	return nil
}

// AgentDisconnect ends a connection's agent session. When the last agent
// leaves, every non-agent connection is told agents are offline.
func (r *Router) AgentDisconnect(connID string) {
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	r.mu.Lock()
	info, ok := r.agents[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.agents, connID)
	r.removeMemberLocked(r.adminRoom, connID)
	count := len(r.agents)
	var targets []Conn
	if count == 0 {
		targets = r.nonAgentsLocked()
	}
	r.mu.Unlock()

	metrics.AgentsOnline.Set(float64(count))
	r.log.Info().Str("connId", connID).Str("agent", info.Name).Int("agents", count).Msg("agent offline")

	if count == 0 {
		for _, c := range targets {
			r.emit(c, EventAdminStatusChanged, AdminStatus{IsOnline: false})
		}
		r.hooks.EmitAsync(context.Background(), hooks.EventAgentPresence, map[string]any{
			"online": false,
			"agent":  info.Name,
		})
	}
}

// AgentOnline reports whether at least one human agent is connected.
func (r *Router) AgentOnline() bool { return r.AgentCount() > 0 }

// AgentCount returns the number of connected human agents.
func (r *Router) AgentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// IsAgent reports whether connID belongs to an authenticated agent.
func (r *Router) IsAgent(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[connID]
	return ok
}

// Status returns the current agent presence.
func (r *Router) Status() AdminStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusLocked()
}

func (r *Router) statusLocked() AdminStatus {
	for _, a := range r.agents {
		return AdminStatus{IsOnline: true, AdminName: a.Name}
	}
	return AdminStatus{}
}

func (r *Router) nonAgentsLocked() []Conn {
	out := make([]Conn, 0, len(r.conns))
	for id, c := range r.conns {
		if _, agent := r.agents[id]; !agent {
			out = append(out, c)
		}
	}
	return out
}

// audience returns the connections in room and in the admin room, each once.
func (r *Router) audience(room string, exclude string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Conn
	for _, g := range []string{room, r.adminRoom} {
		for id := range r.rooms[g] {
			if id == exclude || seen[id] {
				continue
			}
			seen[id] = true
			if c, ok := r.conns[id]; ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// roomMembers returns the connections in room only.
func (r *Router) roomMembers(room string, exclude string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		if id == exclude {
			continue
		}
		if c, ok := r.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Router) conn(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

func (r *Router) emit(c Conn, event string, payload any) {
	if err := c.Emit(event, payload); err != nil {
		r.log.Debug().Err(err).Str("connId", c.ID()).Str("event", event).Msg("emit failed")
	}
}

func (r *Router) roomState(room string) *roomState {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	st, ok := r.locks[room]
	if !ok {
		st = &roomState{}
		r.locks[room] = st
	}
	return st
}

// Close stops new automated replies and waits for the ones in flight.
func (r *Router) Close() {
	r.lifeMu.Lock()
	if r.closed {
		r.lifeMu.Unlock()
		return
	}
	r.closed = true
	r.lifeMu.Unlock()

	r.replies.Wait()
	r.hooks.Wait()
	r.log.Debug().Msg("chat router closed")
}
