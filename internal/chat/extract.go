// Package chat holds the in-memory conversation state fed by gateway events
// and the auto-responder built on top of it.
package chat

import (
	"encoding/json"

	"github.com/google/uuid"

	"evopanel/internal/domain"
)

// Ignore reasons for events that carry no usable chat message. Every inbound
// payload is untrusted; extraction never panics on missing fields.
const (
	IgnoreBadJSON    = "bad-json"
	IgnoreNoMessages = "no-messages"
	IgnoreNoRemote   = "no-remote-jid"
	IgnoreNoContent  = "no-content"
)

// Extraction is the discriminated result of reading a gateway event.
// When OK is false, Reason says why the event was ignored.
type Extraction struct {
	OK             bool
	Reason         string
	ConversationID string
	Message        domain.ChatMessage
}

// eventEnvelope mirrors the parts of a gateway webhook body the panel reads.
// The same message array appears either at the top level or under "data".
type eventEnvelope struct {
	Event    string         `json:"event"`
	Messages []eventMessage `json:"messages"`
	Data     struct {
		Messages []eventMessage `json:"messages"`
	} `json:"data"`
}

type eventMessage struct {
	Key struct {
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	Message struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
	} `json:"message"`
	MessageTimestamp int64 `json:"messageTimestamp"`
}

// Extract derives one ChatMessage from the first message entry of a gateway
// event body. An event with zero message entries is ignored, not an error.
func Extract(body []byte) Extraction {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Extraction{Reason: IgnoreBadJSON}
	}

	messages := env.Messages
	if len(messages) == 0 {
		messages = env.Data.Messages
	}
	if len(messages) == 0 {
		return Extraction{Reason: IgnoreNoMessages}
	}

	first := messages[0]
	if first.Key.RemoteJid == "" {
		return Extraction{Reason: IgnoreNoRemote}
	}

	content := first.Message.Conversation
	if content == "" {
		content = first.Message.ExtendedTextMessage.Text
	}
	if content == "" {
		return Extraction{Reason: IgnoreNoContent}
	}

	sender := domain.SenderUser
	if first.Key.FromMe {
		sender = domain.SenderBot
	}

	id := first.Key.ID
	if id == "" {
		id = uuid.NewString()
	}

	return Extraction{
		OK:             true,
		ConversationID: first.Key.RemoteJid,
		Message: domain.ChatMessage{
			ID:        id,
			Sender:    sender,
			Content:   content,
			Timestamp: first.MessageTimestamp,
		},
	}
}
