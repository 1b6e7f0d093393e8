package gateway

import (
	"context"
	"log/slog"
	"time"

	"evopanel/internal/domain"
)

// Outcome is the terminal state of a connection watch.
type Outcome string

const (
	// OutcomeConnected means a poll observed state "open".
	OutcomeConnected Outcome = "connected"
	// OutcomeExhausted means the attempt budget ran out before "open".
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeCancelled means the caller cancelled the watch.
	OutcomeCancelled Outcome = "cancelled"
)

// StateFunc queries the current connection state of an instance.
type StateFunc func(ctx context.Context, instance string) (string, error)

// Watcher polls an instance's connection state at a fixed interval until it
// becomes "open", the attempt budget is exhausted, or the context is
// cancelled. The ticker is always torn down on exit.
type Watcher struct {
	state       StateFunc
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

type WatcherConfig struct {
	State       StateFunc
	Interval    time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	return &Watcher{
		state:       cfg.State,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
}

// Watch blocks until a terminal outcome. A failed poll counts as an attempt
// and polling continues; only "open" stops the watch early.
func (w *Watcher) Watch(ctx context.Context, instance string) Outcome {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			w.logger.Info("connection watch cancelled", "instance", instance)
			return OutcomeCancelled
		case <-ticker.C:
		}

		state, err := w.state(ctx, instance)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled
			}
			w.logger.Warn("connection state poll failed",
				"instance", instance, "attempt", attempt, "err", err)
			continue
		}

		w.logger.Debug("connection state", "instance", instance, "state", state, "attempt", attempt)
		if state == domain.StateOpen {
			w.logger.Info("instance connected", "instance", instance, "attempts", attempt)
			return OutcomeConnected
		}
	}

	w.logger.Warn("connection watch exhausted",
		"instance", instance, "attempts", w.maxAttempts)
	return OutcomeExhausted
}

// Handle is a cancellable in-flight watch.
type Handle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Start runs Watch in the background and returns a handle the caller must
// either wait on or cancel; cancelling twice is harmless.
func (w *Watcher) Start(ctx context.Context, instance string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.outcome = w.Watch(ctx, instance)
	}()
	return h
}

// Cancel stops the watch; the watcher's timer is released before Done fires.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the watch reaches a terminal outcome.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome is valid after Done is closed.
func (h *Handle) Outcome() Outcome { return h.outcome }
