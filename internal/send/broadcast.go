// Package send fans a single text out to many recipients through the gateway.
package send

import (
	"context"
	"log/slog"
	"sync"

	"evopanel/internal/domain"
)

// Outcome is the result of one recipient's send. Each recipient succeeds or
// fails on its own; one failure never stops the rest.
type Outcome struct {
	To        string `json:"to"`
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report aggregates a broadcast run.
type Report struct {
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// Broadcaster sends one message to many recipients concurrently.
type Broadcaster struct {
	sender domain.GatewayClient
	logger *slog.Logger
}

func NewBroadcaster(sender domain.GatewayClient, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{sender: sender, logger: logger}
}

// Send dispatches text to every recipient in parallel and waits for all
// outcomes. Outcomes are returned in recipient order regardless of which
// send finished first.
func (b *Broadcaster) Send(ctx context.Context, instance, text string, recipients []string) *Report {
	outcomes := make([]Outcome, len(recipients))

	var wg sync.WaitGroup
	for i, to := range recipients {
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			res, err := b.sender.SendText(ctx, instance, to, text)
			if err != nil {
				b.logger.Warn("broadcast send failed", "to", to, "error", err)
				outcomes[i] = Outcome{To: to, Error: err.Error()}
				return
			}
			outcomes[i] = Outcome{To: to, OK: true, MessageID: res.MessageID}
		}(i, to)
	}
	wg.Wait()

	report := &Report{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.OK {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	b.logger.Info("broadcast complete", "recipients", len(recipients), "sent", report.Sent, "failed", report.Failed)
	return report
}
