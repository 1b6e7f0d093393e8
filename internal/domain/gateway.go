package domain

import "context"

// Gateway connection states as reported by the Evolution-style API.
// The set is gateway-defined; only "open" is interpreted by this system.
const (
	StateOpen       = "open"
	StateConnecting = "connecting"
	StateClose      = "close"
)

// Instance is a named WhatsApp device session managed by the gateway.
type Instance struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Owner  string `json:"owner,omitempty"`
}

// QRPayload is the pairing material returned when connecting an instance.
type QRPayload struct {
	Code   string `json:"code"`
	Base64 string `json:"base64,omitempty"`
}

// SendResult is the gateway's response to a message send, kept verbatim
// apart from the key/status fields the panel reads.
type SendResult struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Raw       []byte `json:"-"`
}

// GatewayClient is the outbound HTTP surface of the external gateway.
// Every call is a single request: no retry, errors propagate to the caller.
type GatewayClient interface {
	CreateInstance(ctx context.Context, name string) error
	Connect(ctx context.Context, name string) (*QRPayload, error)
	ConnectionState(ctx context.Context, name string) (string, error)
	Logout(ctx context.Context, name string) error
	DeleteInstance(ctx context.Context, name string) error
	FetchInstances(ctx context.Context) ([]Instance, error)
	SendText(ctx context.Context, instance, to, text string) (*SendResult, error)
}
