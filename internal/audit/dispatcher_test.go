package audit

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}
	d.Close()

	if got := d.Delivered(); got != 5 {
		t.Fatalf("delivered = %d, want 5", got)
	}
	if len(sink.Events()) != 5 {
		t.Fatalf("sink received %d events", len(sink.Events()))
	}
	ev := <-sink.Events()
	if ev.Timestamp.IsZero() {
		t.Fatal("timestamp must be stamped on emit")
	}

	d.Emit(context.Background(), Event{EventType: "late"})
	if got := d.Delivered(); got != 5 {
		t.Fatalf("emit after close delivered, count = %d", got)
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// one event held by the sink, one buffered, the rest dropped
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(sink.release)
	d.Close()
	if d.Dropped()+d.Delivered() != 10 {
		t.Fatalf("dropped %d + delivered %d != 10", d.Dropped(), d.Delivered())
	}
}

func TestSlogSinkWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := SlogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	sink.Emit(context.Background(), Event{EventType: "account_deleted", AccountID: "acc-1", Success: true})

	out := buf.String()
	if !strings.Contains(out, "account_deleted") || !strings.Contains(out, "acc-1") {
		t.Fatalf("unexpected log line: %s", out)
	}
}
