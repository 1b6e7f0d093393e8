package domain

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one message in a conversation, derived from a gateway event.
// Timestamp is the gateway's message timestamp (unix seconds), not arrival time.
type ChatMessage struct {
	ID        string `json:"id"`
	Sender    Sender `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Conversation groups the messages exchanged with one remote identifier.
// Messages are append-only in arrival order.
type Conversation struct {
	ID       string        `json:"id"`
	Messages []ChatMessage `json:"messages"`
}
