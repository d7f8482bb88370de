package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

// ErrEmptyRoom is returned when a message has no room id.
var ErrEmptyRoom = errors.New("store: empty room id")

// MessageStore persists chat messages in SQLite.
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a message store using the given database.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append persists a message. A missing id is filled with a UUIDv7 and a zero
// timestamp with the current time. The stored message is returned.
func (s *MessageStore) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg, err := prepare(msg)
	if err != nil {
		return msg, err
	}

	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO chat_messages (id, room_id, sender_id, sender_name, sender_role, body, media_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.SenderName, string(msg.SenderRole),
		msg.Body, msg.MediaURL, msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return msg, fmt.Errorf("inserting message: %w", err)
	}
	return msg, nil
}

// History returns the most recent limit messages of a room, oldest first.
func (s *MessageStore) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, room_id, sender_id, sender_name, sender_role, body, media_url, created_at
		 FROM chat_messages
		 WHERE room_id = ?
		 ORDER BY created_at DESC, seq DESC
		 LIMIT ?`, roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &role, &m.Body, &m.MediaURL, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.SenderRole = domain.Role(role)
		m.CreatedAt = time.UnixMilli(created).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(msgs)
	return msgs, nil
}

// Rooms summarizes every room that has messages, most recently active first.
func (s *MessageStore) Rooms(ctx context.Context) ([]domain.RoomSummary, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT m.room_id, c.cnt, m.body, m.sender_role, m.created_at
		 FROM chat_messages m
		 JOIN (SELECT room_id, COUNT(*) AS cnt, MAX(seq) AS last_seq
		       FROM chat_messages GROUP BY room_id) c ON m.seq = c.last_seq
		 ORDER BY m.created_at DESC, m.seq DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.RoomSummary
	for rows.Next() {
		var r domain.RoomSummary
		var role string
		var created int64
		if err := rows.Scan(&r.ConversationID, &r.MessageCount, &r.LastMessage, &role, &created); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		r.LastSenderRole = domain.Role(role)
		r.LastAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRoom removes every message of a room and returns how many were deleted.
func (s *MessageStore) DeleteRoom(ctx context.Context, roomID string) (int, error) {
	res, err := s.db.sql.ExecContext(ctx, "DELETE FROM chat_messages WHERE room_id = ?", roomID)
	if err != nil {
		return 0, fmt.Errorf("deleting room: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// prepare fills server-assigned fields and drops client-only ones.
func prepare(msg domain.Message) (domain.Message, error) {
	if msg.ConversationID == "" {
		return msg, ErrEmptyRoom
	}
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return msg, fmt.Errorf("generating message id: %w", err)
		}
		msg.ID = id.String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)
	msg.TempID = ""
	return msg, nil
}
