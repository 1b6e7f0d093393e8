package relay

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"evopanel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeBus records published events synchronously.
type fakeBus struct {
	events []domain.InboundEvent
}

func (f *fakeBus) Publish(evt domain.InboundEvent) { f.events = append(f.events, evt) }
func (f *fakeBus) Subscribe(name string, handler func(domain.InboundEvent)) {}
func (f *fakeBus) Close()                                                   {}

func TestWebhook_AcceptsArbitraryJSON(t *testing.T) {
	bus := &fakeBus{}
	w := NewWebhook(WebhookConfig{Bus: bus, Logger: testLogger()})

	body := `{"event":"messages.upsert","messages":[{"key":{"remoteJid":"123"}}]}`
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	w.Handle(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rr.Body.String())
	}
	if len(bus.events) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.events))
	}
	if string(bus.events[0].Body) != body {
		t.Error("published body must be the exact request body")
	}
	if bus.events[0].Kind != "messages.upsert" {
		t.Errorf("kind = %q", bus.events[0].Kind)
	}
}

func TestWebhook_NonJSONStillAcknowledged(t *testing.T) {
	bus := &fakeBus{}
	w := NewWebhook(WebhookConfig{Bus: bus, Logger: testLogger()})

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString("not json at all"))
	rr := httptest.NewRecorder()
	w.Handle(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even for non-JSON", rr.Code)
	}
	if len(bus.events) != 1 {
		t.Errorf("payload should still be relayed verbatim")
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	w := NewWebhook(WebhookConfig{Bus: &fakeBus{}, Logger: testLogger()})
	req := httptest.NewRequest("GET", "/webhook", nil)
	rr := httptest.NewRecorder()

	w.Handle(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestWebhook_MissingSignature(t *testing.T) {
	w := NewWebhook(WebhookConfig{Bus: &fakeBus{}, Secret: "s3cret", Logger: testLogger()})
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()

	w.Handle(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	w := NewWebhook(WebhookConfig{Bus: &fakeBus{}, Secret: "s3cret", Logger: testLogger()})
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Signature-256", "sha256=bogus")
	rr := httptest.NewRecorder()

	w.Handle(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestWebhook_ValidSignature(t *testing.T) {
	secret := "s3cret"
	body := []byte(`{"event":"messages.upsert"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	bus := &fakeBus{}
	w := NewWebhook(WebhookConfig{Bus: bus, Secret: secret, Logger: testLogger()})
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature-256", sig)
	rr := httptest.NewRecorder()

	w.Handle(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if len(bus.events) != 1 {
		t.Error("signed event not published")
	}
}

func TestVerifyHMAC(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"content":"hello"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !verifyHMAC(body, secret, sig) {
		t.Error("valid HMAC should verify")
	}
	if verifyHMAC(body, secret, "sha256=invalid") {
		t.Error("invalid HMAC should not verify")
	}
	if verifyHMAC(body, secret, "") {
		t.Error("empty signature should not verify")
	}
}
