package chat

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"evopanel/internal/domain"
	"evopanel/internal/metrics"
)

const sendTimeout = 30 * time.Second

// TextSender is the slice of the gateway client the responder needs.
type TextSender interface {
	SendText(ctx context.Context, instance, to, text string) (*domain.SendResult, error)
}

// Responder applies gateway events to the chat log and, when active, answers
// user messages with a canned reply. The state transition always happens
// first; the send is a separate fire-and-forget effect that never rolls it
// back.
type Responder struct {
	log       *Log
	sender    TextSender
	templates *Templates
	instance  string
	template  string
	active    atomic.Bool
	logger    *slog.Logger
}

type ResponderConfig struct {
	Log       *Log
	Sender    TextSender
	Templates *Templates
	Instance  string
	Template  string
	Active    bool
	Logger    *slog.Logger
}

func NewResponder(cfg ResponderConfig) *Responder {
	r := &Responder{
		log:       cfg.Log,
		sender:    cfg.Sender,
		templates: cfg.Templates,
		instance:  cfg.Instance,
		template:  cfg.Template,
		logger:    cfg.Logger,
	}
	r.active.Store(cfg.Active)
	return r
}

// Active reports whether the bot flag is on.
func (r *Responder) Active() bool { return r.active.Load() }

// SetActive flips the bot flag at runtime.
func (r *Responder) SetActive(on bool) {
	r.active.Store(on)
	r.logger.Info("auto-reply flag changed", "active", on)
}

// HandleEvent is the bus subscriber: reduce first, then decide on the effect.
func (r *Responder) HandleEvent(evt domain.InboundEvent) {
	ex := r.log.Apply(evt.Body)
	if !ex.OK {
		metrics.EventsIgnored.Inc()
		r.logger.Debug("event ignored", "reason", ex.Reason, "event", evt.Kind)
		return
	}
	metrics.MessagesStored.Inc()

	if !r.active.Load() || ex.Message.Sender == domain.SenderBot {
		return
	}

	// Fire-and-forget: a failed reply is logged, never retried, and the
	// chat log keeps the message either way.
	conv := ex.ConversationID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		reply := r.templates.Resolve(r.template)
		if _, err := r.sender.SendText(ctx, r.instance, conv, reply); err != nil {
			metrics.SendsFailed.Inc()
			r.logger.Error("auto-reply send failed", "conversation", conv, "err", err)
			return
		}
		metrics.SendsOK.Inc()
		r.logger.Info("auto-reply sent", "conversation", conv)
	}()
}
