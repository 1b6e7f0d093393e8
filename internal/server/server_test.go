package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"evopanel/internal/chat"
	"evopanel/internal/config"
	"evopanel/internal/domain"
	"evopanel/internal/relay"
	"evopanel/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// syncBus delivers events to subscribers inline, so a webhook POST finishes
// only after every handler ran.
type syncBus struct {
	mu       sync.Mutex
	handlers map[string]func(domain.InboundEvent)
}

func newSyncBus() *syncBus {
	return &syncBus{handlers: make(map[string]func(domain.InboundEvent))}
}

func (b *syncBus) Publish(evt domain.InboundEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.handlers {
		h(evt)
	}
}

func (b *syncBus) Subscribe(name string, handler func(domain.InboundEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

func (b *syncBus) Close() {}

// fakeGateway records sends and reports a fixed connection state.
type fakeGateway struct {
	mu    sync.Mutex
	sends []string // "to|text"
	sent  chan struct{}
	state string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sent: make(chan struct{}, 16), state: domain.StateOpen}
}

func (f *fakeGateway) CreateInstance(ctx context.Context, name string) error { return nil }
func (f *fakeGateway) Connect(ctx context.Context, name string) (*domain.QRPayload, error) {
	return &domain.QRPayload{Code: "qr-" + name}, nil
}
func (f *fakeGateway) ConnectionState(ctx context.Context, name string) (string, error) {
	return f.state, nil
}
func (f *fakeGateway) Logout(ctx context.Context, name string) error         { return nil }
func (f *fakeGateway) DeleteInstance(ctx context.Context, name string) error { return nil }
func (f *fakeGateway) FetchInstances(ctx context.Context) ([]domain.Instance, error) {
	return []domain.Instance{{Name: "main", Status: "open"}}, nil
}
func (f *fakeGateway) SendText(ctx context.Context, instance, to, text string) (*domain.SendResult, error) {
	f.mu.Lock()
	f.sends = append(f.sends, to+"|"+text)
	f.mu.Unlock()
	f.sent <- struct{}{}
	return &domain.SendResult{MessageID: "id-" + to, Status: "PENDING"}, nil
}

func (f *fakeGateway) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type testEnv struct {
	srv     *httptest.Server
	gateway *fakeGateway
	chatLog *chat.Log
	hub     *relay.Hub
}

func newTestEnv(t *testing.T, autoReply bool) *testEnv {
	t.Helper()
	logger := testLogger()
	cfg := config.Defaults()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "panel.db"), logger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := newSyncBus()
	gw := newFakeGateway()
	chatLog := chat.NewLog()
	hub := relay.NewHub(logger)
	templates, _ := chat.LoadTemplates("", logger)
	responder := chat.NewResponder(chat.ResponderConfig{
		Log:       chatLog,
		Sender:    gw,
		Templates: templates,
		Instance:  "default",
		Active:    autoReply,
		Logger:    logger,
	})
	bus.Subscribe("relay", hub.HandleEvent)
	bus.Subscribe("responder", responder.HandleEvent)

	webhook := relay.NewWebhook(relay.WebhookConfig{Bus: bus, Logger: logger})

	s := New(Deps{
		Config:    cfg,
		Store:     st,
		Gateway:   gw,
		Webhook:   webhook,
		Hub:       hub,
		ChatLog:   chatLog,
		Responder: responder,
		Logger:    logger,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, gateway: gw, chatLog: chatLog, hub: hub}
}

const upsertBody = `{"event":"messages.upsert","messages":[{"key":{"remoteJid":"123","fromMe":false,"id":"m1"},"message":{"conversation":"hi"},"messageTimestamp":1000}]}`

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestWebhookToRelayEndToEnd(t *testing.T) {
	env := newTestEnv(t, false)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp := postJSON(t, env.srv.URL+"/webhook", upsertBody)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read relay frame: %v", err)
	}
	var frame relay.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if string(frame.Data) != upsertBody {
		t.Errorf("relayed data differs from webhook body:\n%s", frame.Data)
	}

	conv, ok := env.chatLog.Conversation("123")
	if !ok {
		t.Fatal("conversation 123 not created")
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("messages = %d", len(conv.Messages))
	}
	m := conv.Messages[0]
	if m.ID != "m1" || m.Sender != domain.SenderUser || m.Content != "hi" || m.Timestamp != 1000 {
		t.Errorf("message = %+v", m)
	}
}

func TestAutoReplyEndToEnd(t *testing.T) {
	env := newTestEnv(t, true)

	resp := postJSON(t, env.srv.URL+"/webhook", upsertBody)
	resp.Body.Close()

	select {
	case <-env.gateway.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no auto-reply sent")
	}
	if got := env.gateway.sends[0]; !strings.HasPrefix(got, "123|") {
		t.Errorf("reply went to %q", got)
	}

	// Same message but authored by the bot: no reply.
	botBody := strings.Replace(upsertBody, `"fromMe":false`, `"fromMe":true`, 1)
	resp = postJSON(t, env.srv.URL+"/webhook", botBody)
	resp.Body.Close()

	time.Sleep(200 * time.Millisecond)
	if n := env.gateway.sendCount(); n != 1 {
		t.Errorf("sends = %d, want 1 (no reply to own message)", n)
	}
}

func TestAutoReplyToggleEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/webhook", upsertBody)
	resp.Body.Close()
	time.Sleep(100 * time.Millisecond)
	if n := env.gateway.sendCount(); n != 0 {
		t.Fatalf("inactive responder sent %d messages", n)
	}

	req, _ := http.NewRequest("PUT", env.srv.URL+"/api/v1/autoreply", bytes.NewBufferString(`{"active":true}`))
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	r2.Body.Close()

	resp = postJSON(t, env.srv.URL+"/webhook", upsertBody)
	resp.Body.Close()
	select {
	case <-env.gateway.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no reply after enabling")
	}
}

func TestUserRoutes(t *testing.T) {
	env := newTestEnv(t, false)
	base := env.srv.URL + "/api/v1/users"

	resp := postJSON(t, base, `{"name":"Ana","email":"ana@example.com","balance":100}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created domain.User
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if created.ID == 0 || created.Password != "" {
		t.Errorf("created = %+v", created)
	}

	resp, _ = http.Get(fmt.Sprintf("%s/%d", base, created.ID))
	var got domain.User
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Name != "Ana" || got.Balance != 100 {
		t.Errorf("got = %+v", got)
	}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("%s/%d/balance", base, created.ID),
		bytes.NewBufferString(`{"balance":250}`))
	r2, _ := http.DefaultClient.Do(req)
	r2.Body.Close()

	resp, _ = http.Get(fmt.Sprintf("%s/%d", base, created.ID))
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Balance != 250 {
		t.Errorf("balance = %d", got.Balance)
	}

	resp = postJSON(t, base, `{"name":"NoEmail"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing email status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(base + "/9999")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing user status = %d", resp.StatusCode)
	}
}

func TestMassSendRoute(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/v1/send/mass",
		`{"text":"promo","recipients":["111","222","333"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var report struct {
		Sent     int `json:"sent"`
		Failed   int `json:"failed"`
		Outcomes []struct {
			To string `json:"to"`
			OK bool   `json:"ok"`
		} `json:"outcomes"`
	}
	json.NewDecoder(resp.Body).Decode(&report)
	resp.Body.Close()

	if report.Sent != 3 || report.Failed != 0 || len(report.Outcomes) != 3 {
		t.Errorf("report = %+v", report)
	}
}

func TestMassSendByGroup(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/v1/groups", `{"name":"vip"}`)
	var group domain.Group
	json.NewDecoder(resp.Body).Decode(&group)
	resp.Body.Close()

	for _, phone := range []string{"5511000000001", "5511000000002"} {
		r := postJSON(t, env.srv.URL+"/api/v1/contacts",
			fmt.Sprintf(`{"name":"c","phone":"%s","group_id":%d}`, phone, group.ID))
		r.Body.Close()
	}

	resp = postJSON(t, env.srv.URL+"/api/v1/send/mass",
		fmt.Sprintf(`{"text":"hello","group_id":%d}`, group.ID))
	var report struct {
		Sent int `json:"sent"`
	}
	json.NewDecoder(resp.Body).Decode(&report)
	resp.Body.Close()
	if report.Sent != 2 {
		t.Errorf("sent = %d, want 2", report.Sent)
	}
}

func TestInstanceRoutes(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Get(env.srv.URL + "/api/v1/instances/main/state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	var state map[string]string
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state["state"] != domain.StateOpen {
		t.Errorf("state = %q", state["state"])
	}

	resp, _ = http.Get(env.srv.URL + "/api/v1/instances")
	var instances []domain.Instance
	json.NewDecoder(resp.Body).Decode(&instances)
	resp.Body.Close()
	if len(instances) != 1 || instances[0].Name != "main" {
		t.Errorf("instances = %+v", instances)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Get(env.srv.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %+v", body)
	}
}

func TestLoginRoute(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/v1/users",
		`{"name":"Ana","email":"ana@example.com","password":"s3nha"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	resp = postJSON(t, env.srv.URL+"/api/v1/login",
		`{"email":"ana@example.com","password":"s3nha"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var u domain.User
	json.NewDecoder(resp.Body).Decode(&u)
	resp.Body.Close()
	if u.Email != "ana@example.com" || u.Password != "" {
		t.Errorf("login response = %+v, password must not leak", u)
	}

	resp = postJSON(t, env.srv.URL+"/api/v1/login",
		`{"email":"ana@example.com","password":"wrong"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, env.srv.URL+"/api/v1/login",
		`{"email":"nobody@example.com","password":"s3nha"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", resp.StatusCode)
	}
}
