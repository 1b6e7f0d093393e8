package chat

import (
	"sync"

	"evopanel/internal/domain"
)

// Log is the per-process conversation state: a keyed map from conversation id
// to an append-only message list. Conversations are created on first message,
// never merged or deleted, and vanish with the process.
type Log struct {
	mu    sync.RWMutex
	convs map[string][]domain.ChatMessage
	order []string // conversation ids in creation order
}

func NewLog() *Log {
	return &Log{convs: make(map[string][]domain.ChatMessage)}
}

// Apply runs the state transition (conversations, event) -> conversations'.
// It appends at most one message; ignored events leave the log untouched.
func (l *Log) Apply(body []byte) Extraction {
	ex := Extract(body)
	if !ex.OK {
		return ex
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.convs[ex.ConversationID]; !exists {
		l.order = append(l.order, ex.ConversationID)
	}
	l.convs[ex.ConversationID] = append(l.convs[ex.ConversationID], ex.Message)
	return ex
}

// Conversation returns a copy of one conversation's messages.
func (l *Log) Conversation(id string) (domain.Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs, ok := l.convs[id]
	if !ok {
		return domain.Conversation{}, false
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return domain.Conversation{ID: id, Messages: out}, true
}

// Conversations returns all conversations in creation order.
func (l *Log) Conversations() []domain.Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Conversation, 0, len(l.order))
	for _, id := range l.order {
		msgs := make([]domain.ChatMessage, len(l.convs[id]))
		copy(msgs, l.convs[id])
		out = append(out, domain.Conversation{ID: id, Messages: msgs})
	}
	return out
}

// Len reports the number of conversations.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.convs)
}
