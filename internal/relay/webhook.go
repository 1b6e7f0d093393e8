// Package relay receives gateway webhook events and fans them out verbatim
// to connected browser clients over WebSocket.
package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"evopanel/internal/domain"
	"evopanel/internal/metrics"
)

const maxWebhookBody = 1 << 20 // 1MB

// Webhook is the inbound HTTP endpoint the gateway posts events to. The
// request is acknowledged synchronously; fan-out happens after the 200, so a
// broadcast failure never reaches the gateway (at-most-once, fire-and-forget).
type Webhook struct {
	bus    domain.EventBus
	secret string
	logger *slog.Logger
}

type WebhookConfig struct {
	Bus    domain.EventBus
	Secret string // HMAC secret; empty disables signature verification
	Logger *slog.Logger
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	return &Webhook{
		bus:    cfg.Bus,
		secret: cfg.Secret,
		logger: cfg.Logger,
	}
}

func (w *Webhook) Handle(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify HMAC signature if a shared secret is configured.
	if w.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, w.secret, sig) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	// Event kind is best-effort: the payload is relayed either way.
	var envelope struct {
		Event string `json:"event"`
	}
	_ = json.Unmarshal(body, &envelope)

	metrics.EventsReceived.Inc()
	w.logger.Info("webhook event received", "event", envelope.Event, "bytes", len(body))

	w.bus.Publish(domain.InboundEvent{Kind: envelope.Event, Body: body})

	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte("OK"))
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
