package chat

import (
	"testing"

	"evopanel/internal/domain"
)

const upsertEvent = `{"event":"messages.upsert","messages":[{"key":{"remoteJid":"123","fromMe":false,"id":"m1"},"message":{"conversation":"hi"},"messageTimestamp":1000}]}`

func TestExtract_FirstMessage(t *testing.T) {
	ex := Extract([]byte(upsertEvent))
	if !ex.OK {
		t.Fatalf("extraction failed: %s", ex.Reason)
	}
	if ex.ConversationID != "123" {
		t.Errorf("conversation = %q", ex.ConversationID)
	}
	want := domain.ChatMessage{ID: "m1", Sender: domain.SenderUser, Content: "hi", Timestamp: 1000}
	if ex.Message != want {
		t.Errorf("message = %+v, want %+v", ex.Message, want)
	}
}

func TestExtract_FromMeIsBot(t *testing.T) {
	body := `{"messages":[{"key":{"remoteJid":"123","fromMe":true,"id":"m2"},"message":{"conversation":"echo"},"messageTimestamp":1001}]}`
	ex := Extract([]byte(body))
	if !ex.OK {
		t.Fatalf("extraction failed: %s", ex.Reason)
	}
	if ex.Message.Sender != domain.SenderBot {
		t.Errorf("sender = %q, want bot", ex.Message.Sender)
	}
}

func TestExtract_NestedDataMessages(t *testing.T) {
	body := `{"event":"messages.upsert","data":{"messages":[{"key":{"remoteJid":"456","id":"m3"},"message":{"conversation":"oi"},"messageTimestamp":2000}]}}`
	ex := Extract([]byte(body))
	if !ex.OK {
		t.Fatalf("extraction failed: %s", ex.Reason)
	}
	if ex.ConversationID != "456" {
		t.Errorf("conversation = %q", ex.ConversationID)
	}
}

func TestExtract_ExtendedText(t *testing.T) {
	body := `{"messages":[{"key":{"remoteJid":"123","id":"m4"},"message":{"extendedTextMessage":{"text":"linked"}},"messageTimestamp":3000}]}`
	ex := Extract([]byte(body))
	if !ex.OK {
		t.Fatalf("extraction failed: %s", ex.Reason)
	}
	if ex.Message.Content != "linked" {
		t.Errorf("content = %q", ex.Message.Content)
	}
}

func TestExtract_Ignored(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		reason string
	}{
		{"empty messages", `{"messages":[]}`, IgnoreNoMessages},
		{"no messages key", `{"event":"connection.update","data":{"state":"open"}}`, IgnoreNoMessages},
		{"not json", `nope`, IgnoreBadJSON},
		{"no remote jid", `{"messages":[{"key":{"id":"m1"},"message":{"conversation":"x"}}]}`, IgnoreNoRemote},
		{"no content", `{"messages":[{"key":{"remoteJid":"123","id":"m1"},"message":{}}]}`, IgnoreNoContent},
	}
	for _, tc := range cases {
		ex := Extract([]byte(tc.body))
		if ex.OK {
			t.Errorf("%s: expected ignored", tc.name)
			continue
		}
		if ex.Reason != tc.reason {
			t.Errorf("%s: reason = %q, want %q", tc.name, ex.Reason, tc.reason)
		}
	}
}

func TestExtract_MissingIDGetsGenerated(t *testing.T) {
	body := `{"messages":[{"key":{"remoteJid":"123"},"message":{"conversation":"hi"}}]}`
	ex := Extract([]byte(body))
	if !ex.OK {
		t.Fatalf("extraction failed: %s", ex.Reason)
	}
	if ex.Message.ID == "" {
		t.Error("expected generated message id")
	}
}

func TestLogApply_AppendsExactlyOne(t *testing.T) {
	l := NewLog()

	ex := l.Apply([]byte(upsertEvent))
	if !ex.OK {
		t.Fatalf("apply failed: %s", ex.Reason)
	}

	conv, ok := l.Conversation("123")
	if !ok {
		t.Fatal("conversation 123 not created")
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(conv.Messages))
	}
	if l.Len() != 1 {
		t.Errorf("log has %d conversations, want 1", l.Len())
	}
}

func TestLogApply_OtherConversationsUnchanged(t *testing.T) {
	l := NewLog()
	l.Apply([]byte(upsertEvent))

	other := `{"messages":[{"key":{"remoteJid":"999","id":"x1"},"message":{"conversation":"oi"},"messageTimestamp":500}]}`
	l.Apply([]byte(other))

	conv, _ := l.Conversation("123")
	if len(conv.Messages) != 1 {
		t.Errorf("conversation 123 mutated: %d messages", len(conv.Messages))
	}
	conv, _ = l.Conversation("999")
	if len(conv.Messages) != 1 {
		t.Errorf("conversation 999 has %d messages", len(conv.Messages))
	}
}

func TestLogApply_EmptyMessagesIsNoop(t *testing.T) {
	l := NewLog()
	ex := l.Apply([]byte(`{"messages":[]}`))
	if ex.OK {
		t.Fatal("empty messages array must be ignored")
	}
	if l.Len() != 0 {
		t.Errorf("no-op event created %d conversations", l.Len())
	}
}

func TestLogApply_AppendOrderIsArrivalOrder(t *testing.T) {
	l := NewLog()
	// Second message carries an older timestamp: arrival order still wins.
	l.Apply([]byte(`{"messages":[{"key":{"remoteJid":"123","id":"a"},"message":{"conversation":"first"},"messageTimestamp":2000}]}`))
	l.Apply([]byte(`{"messages":[{"key":{"remoteJid":"123","id":"b"},"message":{"conversation":"second"},"messageTimestamp":1000}]}`))

	conv, _ := l.Conversation("123")
	if len(conv.Messages) != 2 {
		t.Fatalf("got %d messages", len(conv.Messages))
	}
	if conv.Messages[0].ID != "a" || conv.Messages[1].ID != "b" {
		t.Errorf("messages reordered: %v", conv.Messages)
	}
}

func TestLogConversation_ReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Apply([]byte(upsertEvent))

	conv, _ := l.Conversation("123")
	conv.Messages[0].Content = "tampered"

	again, _ := l.Conversation("123")
	if again.Messages[0].Content != "hi" {
		t.Error("Conversation must return a copy, not the backing slice")
	}
}

func TestLogConversations_CreationOrder(t *testing.T) {
	l := NewLog()
	l.Apply([]byte(`{"messages":[{"key":{"remoteJid":"b","id":"1"},"message":{"conversation":"x"}}]}`))
	l.Apply([]byte(`{"messages":[{"key":{"remoteJid":"a","id":"2"},"message":{"conversation":"y"}}]}`))

	convs := l.Conversations()
	if len(convs) != 2 || convs[0].ID != "b" || convs[1].ID != "a" {
		t.Errorf("unexpected order: %v", convs)
	}
}
