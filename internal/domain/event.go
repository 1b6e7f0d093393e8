package domain

import "encoding/json"

// InboundEvent is a raw webhook payload from the gateway. The body is kept
// verbatim for relay fan-out; Kind is the gateway's event-type string when
// the payload carries one (e.g. "messages.upsert").
type InboundEvent struct {
	Kind string
	Body json.RawMessage
}

// EventBus fans inbound gateway events out to in-process subscribers.
type EventBus interface {
	Publish(evt InboundEvent)
	Subscribe(name string, handler func(InboundEvent))
	Close()
}
