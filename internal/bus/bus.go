// Package bus publishes persisted chat messages to NATS so that other
// systems (CRM, analytics) can follow conversations.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/logging"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "chat"

// Publisher forwards persisted messages.
type Publisher interface {
	Publish(ctx context.Context, msg domain.Message) error
	Close()
}

// Nop discards everything. It is used when no bus is configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Message) error { return nil }
func (Nop) Close()                                        {}

// Subject returns the subject a message is published on:
// <prefix>.<room>.msg.<role>. Characters NATS treats specially in a token
// are replaced with '_'.
func Subject(prefix string, msg domain.Message) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return fmt.Sprintf("%s.%s.msg.%s", prefix, token(msg.ConversationID), token(string(msg.SenderRole)))
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// NATSPublisher publishes messages as JSON on a NATS connection.
type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	log     *logging.Logger
	publish func(subject string, data []byte) error
}

// Connect dials url and returns a publisher. The connection reconnects
// forever in the background.
func Connect(url, prefix string, log *logging.Logger) (*NATSPublisher, error) {
	log = log.Sub("bus")
	nc, err := nats.Connect(url,
		nats.Name("chevai-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	p := newPublisher(prefix, log, nc.Publish)
	p.conn = nc
	log.Info().Str("url", nc.ConnectedUrl()).Str("prefix", p.prefix).Msg("message bus connected")
	return p, nil
}

func newPublisher(prefix string, log *logging.Logger, publish func(string, []byte) error) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{prefix: prefix, log: log, publish: publish}
}

// Publish sends msg on its room subject.
func (p *NATSPublisher) Publish(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	subject := Subject(p.prefix, msg)
	if err := p.publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	p.log.Debug().Str("subject", subject).Str("id", msg.ID).Msg("message published")
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
