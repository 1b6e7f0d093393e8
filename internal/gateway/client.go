// Package gateway is the HTTP client of the external Evolution-style
// WhatsApp gateway. Every operation is a single request with the configured
// timeout: errors propagate to the caller, nothing is retried here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"evopanel/internal/domain"
	"evopanel/internal/metrics"
)

// Fixed send options the panel applies to every outbound text.
const (
	sendDelayMs  = 1200
	sendPresence = "composing"
)

// Client talks to the gateway's REST API with an apikey header.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

// newHTTPClient returns a pooled HTTP client with a hard request timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StatusError is a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway HTTP %d: %s", e.StatusCode, e.Body)
}

// do issues one request and decodes the JSON response into vout (when non-nil).
// The raw body is returned so callers can pass the gateway response through.
func (c *Client) do(ctx context.Context, method, path string, body any, vout any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if vout != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, vout); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}

func (c *Client) CreateInstance(ctx context.Context, name string) error {
	payload := map[string]any{
		"instanceName": name,
		"qrcode":       true,
	}
	if _, err := c.do(ctx, http.MethodPost, "/instance/create", payload, nil); err != nil {
		return fmt.Errorf("create instance %s: %w", name, err)
	}
	c.logger.Info("instance created", "instance", name)
	return nil
}

func (c *Client) Connect(ctx context.Context, name string) (*domain.QRPayload, error) {
	var out struct {
		Code   string `json:"code"`
		Base64 string `json:"base64"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/instance/connect/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, fmt.Errorf("connect instance %s: %w", name, err)
	}
	return &domain.QRPayload{Code: out.Code, Base64: out.Base64}, nil
}

func (c *Client) ConnectionState(ctx context.Context, name string) (string, error) {
	var out struct {
		Instance struct {
			InstanceName string `json:"instanceName"`
			State        string `json:"state"`
		} `json:"instance"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+url.PathEscape(name), nil, &out); err != nil {
		return "", fmt.Errorf("connection state %s: %w", name, err)
	}
	return out.Instance.State, nil
}

func (c *Client) Logout(ctx context.Context, name string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/instance/logout/"+url.PathEscape(name), nil, nil); err != nil {
		return fmt.Errorf("logout instance %s: %w", name, err)
	}
	return nil
}

func (c *Client) DeleteInstance(ctx context.Context, name string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/instance/delete/"+url.PathEscape(name), nil, nil); err != nil {
		return fmt.Errorf("delete instance %s: %w", name, err)
	}
	return nil
}

func (c *Client) FetchInstances(ctx context.Context) ([]domain.Instance, error) {
	var out []struct {
		Instance struct {
			InstanceName string `json:"instanceName"`
			Status       string `json:"status"`
			Owner        string `json:"owner"`
		} `json:"instance"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/instance/fetchInstances", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch instances: %w", err)
	}

	instances := make([]domain.Instance, 0, len(out))
	for _, item := range out {
		instances = append(instances, domain.Instance{
			Name:   item.Instance.InstanceName,
			Status: item.Instance.Status,
			Owner:  item.Instance.Owner,
		})
	}
	return instances, nil
}

func (c *Client) SendText(ctx context.Context, instance, to, text string) (*domain.SendResult, error) {
	payload := map[string]any{
		"number": to,
		"options": map[string]any{
			"delay":    sendDelayMs,
			"presence": sendPresence,
		},
		"textMessage": map[string]string{
			"text": text,
		},
	}

	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
		Status string `json:"status"`
	}
	start := time.Now()
	raw, err := c.do(ctx, http.MethodPost, "/message/sendText/"+url.PathEscape(instance), payload, &out)
	metrics.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("send text via %s: %w", instance, err)
	}

	return &domain.SendResult{MessageID: out.Key.ID, Status: out.Status, Raw: raw}, nil
}
