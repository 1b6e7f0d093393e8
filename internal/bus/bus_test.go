package bus

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"evopanel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	got := make(chan domain.InboundEvent, 1)
	b.Subscribe("test", func(evt domain.InboundEvent) {
		got <- evt
	})

	b.Publish(domain.InboundEvent{Kind: "messages.upsert", Body: json.RawMessage(`{"x":1}`)})

	select {
	case evt := <-got:
		if evt.Kind != "messages.upsert" {
			t.Errorf("kind = %q", evt.Kind)
		}
		if string(evt.Body) != `{"x":1}` {
			t.Errorf("body = %s", evt.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	b.Subscribe("a", func(domain.InboundEvent) { wg.Done() })
	b.Subscribe("b", func(domain.InboundEvent) { wg.Done() })

	b.Publish(domain.InboundEvent{Kind: "messages.upsert"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestOrderingPerSubscriber(t *testing.T) {
	b := New(10, testLogger())

	var mu sync.Mutex
	var kinds []string
	b.Subscribe("order", func(evt domain.InboundEvent) {
		mu.Lock()
		kinds = append(kinds, evt.Kind)
		mu.Unlock()
	})

	for _, k := range []string{"one", "two", "three"} {
		b.Publish(domain.InboundEvent{Kind: k})
	}
	b.Close() // drains the dispatch loop

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 3 || kinds[0] != "one" || kinds[1] != "two" || kinds[2] != "three" {
		t.Errorf("events out of order: %v", kinds)
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	// Must not panic.
	b.Publish(domain.InboundEvent{Kind: "late"})
}

func TestSubscribeReplacesHandler(t *testing.T) {
	b := New(10, testLogger())

	first := 0
	second := 0
	b.Subscribe("dup", func(domain.InboundEvent) { first++ })
	b.Subscribe("dup", func(domain.InboundEvent) { second++ })

	b.Publish(domain.InboundEvent{Kind: "x"})
	b.Close()

	if first != 0 {
		t.Errorf("replaced handler was invoked %d times", first)
	}
	if second != 1 {
		t.Errorf("active handler invoked %d times, want 1", second)
	}
}
