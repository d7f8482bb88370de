package chat

import "github.com/soyeahso/chevai-chat/internal/domain"

// Reconcile merges a confirmed message into a client's message list.
//
// Optimistic entries (no id yet) that carry the confirmed message's temp id,
// or the same body and sender role, are dropped. A confirmed message whose
// id is already present leaves the list unchanged.
func Reconcile(list []domain.Message, confirmed domain.Message) []domain.Message {
	for _, m := range list {
		if m.ID != "" && m.ID == confirmed.ID {
			return list
		}
	}

	out := make([]domain.Message, 0, len(list)+1)
	for _, m := range list {
		if m.ID == "" && matchesOptimistic(m, confirmed) {
			continue
		}
		out = append(out, m)
	}
	return append(out, confirmed)
}

func matchesOptimistic(tmp, confirmed domain.Message) bool {
	if tmp.TempID != "" && tmp.TempID == confirmed.TempID {
		return true
	}
	return tmp.Body == confirmed.Body && tmp.SenderRole == confirmed.SenderRole
}
