package store

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

// MemoryMessageStore is an in-process message store. Messages are lost on
// restart.
type MemoryMessageStore struct {
	mu    sync.RWMutex
	rooms map[string][]domain.Message // room id → messages in append order
}

// NewMemoryMessageStore creates an empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{rooms: make(map[string][]domain.Message)}
}

func (s *MemoryMessageStore) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	msg, err := prepare(msg)
	if err != nil {
		return msg, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.rooms[msg.ConversationID]
	// Keep the slice ordered by timestamp, preserving append order on ties.
	i := sort.Search(len(msgs), func(i int) bool { return msgs[i].CreatedAt.After(msg.CreatedAt) })
	msgs = append(msgs, domain.Message{})
	copy(msgs[i+1:], msgs[i:])
	msgs[i] = msg
	s.rooms[msg.ConversationID] = msgs
	return msg, nil
}

func (s *MemoryMessageStore) History(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.rooms[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.Message(nil), msgs...), nil
}

func (s *MemoryMessageStore) Rooms(_ context.Context) ([]domain.RoomSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RoomSummary, 0, len(s.rooms))
	for id, msgs := range s.rooms {
		if len(msgs) == 0 {
			continue
		}
		last := msgs[len(msgs)-1]
		out = append(out, domain.RoomSummary{
			ConversationID: id,
			MessageCount:   len(msgs),
			LastMessage:    last.Body,
			LastSenderRole: last.SenderRole,
			LastAt:         last.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].LastAt.After(out[j].LastAt)
		}
		return out[i].ConversationID < out[j].ConversationID
	})
	return out, nil
}

func (s *MemoryMessageStore) DeleteRoom(_ context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.rooms[roomID])
	delete(s.rooms, roomID)
	return n, nil
}
