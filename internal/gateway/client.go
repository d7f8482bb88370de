package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/chevai-chat/internal/logging"
)

// ErrClientClosed is returned when writing to a closed connection.
var ErrClientClosed = errors.New("client connection closed")

const writeTimeout = 10 * time.Second

// Client is one WebSocket connection. It implements chat.Conn.
type Client struct {
	ConnID      string
	RemoteAddr  string
	ConnectedAt time.Time

	socket *websocket.Conn
	seq    *atomic.Int64
	log    *logging.Logger

	mu       sync.Mutex
	closed   bool
	lastRoom string
}

// NewClient wraps an upgraded socket. Event sequence numbers come from seq,
// which is shared by every client of a server.
func NewClient(conn *websocket.Conn, seq *atomic.Int64, log *logging.Logger) *Client {
	connID := uuid.New().String()
	if id, err := uuid.NewV7(); err == nil {
		connID = id.String()
	}
	return &Client{
		ConnID:      connID,
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
		socket:      conn,
		seq:         seq,
		log:         log,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.ConnID }

// Emit sends a named event.
func (c *Client) Emit(event string, payload any) error {
	f, err := NewEvent(event, payload, c.seq.Add(1))
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Send writes a frame. Safe for concurrent use.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.socket.WriteJSON(frame)
}

// Respond sends a success response for a request id. Requests without an
// id get no response.
func (c *Client) Respond(reqID string, payload any) error {
	if reqID == "" {
		return nil
	}
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for a request id.
func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	if reqID == "" {
		return nil
	}
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame reads the next frame.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (c *Client) setRoom(room string) {
	c.mu.Lock()
	c.lastRoom = room
	c.mu.Unlock()
}

// Room returns the conversation the client joined most recently.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRoom
}

// Close closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.socket.Close()
}

// ClientRegistry tracks open sockets so they can be closed on shutdown.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client), log: log}
}

// Add registers a client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Debug().Str("connId", c.ConnID).Str("remote", c.RemoteAddr).Msg("client connected")
}

// Remove unregisters a client.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	r.log.Debug().Str("connId", connID).Msg("client disconnected")
}

// Count returns the number of open sockets.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every socket.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
