package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"evopanel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeSender records SendText calls and signals each one.
type fakeSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
	ch    chan sendCall
}

type sendCall struct {
	instance string
	to       string
	text     string
}

func newFakeSender() *fakeSender {
	return &fakeSender{ch: make(chan sendCall, 10)}
}

func (f *fakeSender) SendText(ctx context.Context, instance, to, text string) (*domain.SendResult, error) {
	call := sendCall{instance: instance, to: to, text: text}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.err
	f.mu.Unlock()
	f.ch <- call
	if err != nil {
		return nil, err
	}
	return &domain.SendResult{MessageID: "sent", Status: "PENDING"}, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestResponder(t *testing.T, sender TextSender, active bool) (*Responder, *Log) {
	t.Helper()
	log := NewLog()
	tpls, err := LoadTemplates("", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	r := NewResponder(ResponderConfig{
		Log:       log,
		Sender:    sender,
		Templates: tpls,
		Instance:  "shop",
		Template:  "default",
		Active:    active,
		Logger:    testLogger(),
	})
	return r, log
}

func event(body string) domain.InboundEvent {
	return domain.InboundEvent{Kind: "messages.upsert", Body: json.RawMessage(body)}
}

func TestResponder_RepliesToUserMessage(t *testing.T) {
	sender := newFakeSender()
	r, log := newTestResponder(t, sender, true)

	r.HandleEvent(event(upsertEvent))

	select {
	case call := <-sender.ch:
		if call.instance != "shop" || call.to != "123" {
			t.Errorf("call = %+v", call)
		}
		if call.text == "" {
			t.Error("reply text empty")
		}
	case <-time.After(time.Second):
		t.Fatal("no auto-reply was sent")
	}

	if log.Len() != 1 {
		t.Errorf("message not stored")
	}
}

func TestResponder_IgnoresBotMessages(t *testing.T) {
	sender := newFakeSender()
	r, log := newTestResponder(t, sender, true)

	botEvent := `{"messages":[{"key":{"remoteJid":"123","fromMe":true,"id":"m1"},"message":{"conversation":"hi"},"messageTimestamp":1000}]}`
	r.HandleEvent(event(botEvent))

	time.Sleep(20 * time.Millisecond)
	if n := sender.callCount(); n != 0 {
		t.Errorf("bot message triggered %d sends", n)
	}
	// The message itself is still recorded.
	if log.Len() != 1 {
		t.Error("bot message not stored")
	}
}

func TestResponder_InactiveFlagSendsNothing(t *testing.T) {
	sender := newFakeSender()
	r, _ := newTestResponder(t, sender, false)

	r.HandleEvent(event(upsertEvent))

	time.Sleep(20 * time.Millisecond)
	if n := sender.callCount(); n != 0 {
		t.Errorf("inactive responder issued %d sends", n)
	}
}

func TestResponder_SetActiveTogglesAtRuntime(t *testing.T) {
	sender := newFakeSender()
	r, _ := newTestResponder(t, sender, false)

	r.SetActive(true)
	if !r.Active() {
		t.Fatal("flag not set")
	}
	r.HandleEvent(event(upsertEvent))

	select {
	case <-sender.ch:
	case <-time.After(time.Second):
		t.Fatal("no send after enabling the flag")
	}
}

func TestResponder_SendFailureDoesNotRollBackState(t *testing.T) {
	sender := newFakeSender()
	sender.err = errors.New("gateway down")
	r, log := newTestResponder(t, sender, true)

	r.HandleEvent(event(upsertEvent))

	select {
	case <-sender.ch:
	case <-time.After(time.Second):
		t.Fatal("send never attempted")
	}

	conv, ok := log.Conversation("123")
	if !ok || len(conv.Messages) != 1 {
		t.Error("failed send must not roll back the chat log")
	}
}

func TestResponder_MalformedEventNoSendNoState(t *testing.T) {
	sender := newFakeSender()
	r, log := newTestResponder(t, sender, true)

	r.HandleEvent(event(`{"messages":[]}`))
	r.HandleEvent(event(`not json`))

	time.Sleep(20 * time.Millisecond)
	if sender.callCount() != 0 {
		t.Error("ignored events must not trigger sends")
	}
	if log.Len() != 0 {
		t.Error("ignored events must not mutate the log")
	}
}

// --- templates ---

func TestLoadTemplates_FileAndFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replies.yaml")
	content := "templates:\n  - name: greeting\n    text: \"Olá! Como posso ajudar?\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tpls, err := LoadTemplates(path, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := tpls.Resolve("greeting"); got != "Olá! Como posso ajudar?" {
		t.Errorf("Resolve(greeting) = %q", got)
	}
	if got := tpls.Resolve("missing"); got != defaultReply {
		t.Errorf("missing template should fall back to default, got %q", got)
	}
}

func TestLoadTemplates_MissingFileIsFine(t *testing.T) {
	tpls, err := LoadTemplates(filepath.Join(t.TempDir(), "none.yaml"), testLogger())
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if tpls.Resolve("anything") != defaultReply {
		t.Error("default reply expected")
	}
}

func TestLoadTemplates_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("{unclosed"), 0o644)
	if _, err := LoadTemplates(path, testLogger()); err == nil {
		t.Fatal("expected parse error")
	}
}
