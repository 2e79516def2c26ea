package goAccount

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

func auditTestConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	return cfg
}

// collect reads events until none arrives for a short while.
func collect(sink *ChannelSink, max int) []AuditEvent {
	var events []AuditEvent
	for len(events) < max {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-time.After(200 * time.Millisecond):
			return events
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	h := newTestHarnessWith(t, cfg, sink)
	h.register(t, "quiet@example.com")
	_, _ = h.engine.Login(context.Background(), "quiet@example.com", "Wrong-pass-1!")
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLoginFailureCarriesRequestFields(t *testing.T) {
	sink := NewChannelSink(32)
	h := newTestHarnessWith(t, auditTestConfig(), sink)
	h.register(t, "alice@example.com")

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "curl/8.0")
	_, _ = h.engine.Login(ctx, "alice@example.com", "Super-secret-pass-1!")

	var found bool
	for _, ev := range collect(sink, 8) {
		if ev.EventType != auditEventLoginFailure {
			continue
		}
		found = true
		if ev.IP != "198.51.100.33" {
			t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
		}
		if ev.UserAgent != "curl/8.0" {
			t.Fatalf("expected user agent, got %q", ev.UserAgent)
		}
		if ev.Success {
			t.Fatal("failure event marked successful")
		}
	}
	if !found {
		t.Fatal("expected a login_failure event")
	}
}

func TestAuditLockoutEvent(t *testing.T) {
	sink := NewChannelSink(64)
	h := newTestHarnessWith(t, auditTestConfig(), sink)
	reg := h.register(t, "locked@example.com")

	for i := 0; i < 5; i++ {
		_, _ = h.engine.Login(context.Background(), "locked@example.com", "Wrong-pass-1!")
	}

	for _, ev := range collect(sink, 16) {
		if ev.EventType == auditEventAccountLocked {
			if ev.AccountID != reg.Account.ID {
				t.Fatalf("lock event for %q, want %q", ev.AccountID, reg.Account.ID)
			}
			return
		}
	}
	t.Fatal("expected an account_locked event")
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	var buf syncBuffer
	h := newTestHarnessWith(t, auditTestConfig(), NewJSONWriterSink(&buf))
	reg := h.register(t, "secret@example.com")
	ctx := context.Background()

	pair, err := h.engine.Refresh(ctx, reg.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := h.engine.RequestPasswordReset(ctx, "secret@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	h.engine.Close()

	needles := []string{
		testPassword,
		reg.Tokens.AccessToken,
		reg.Tokens.RefreshToken,
		pair.RefreshToken,
		h.notifier.resetToken("secret@example.com"),
		h.notifier.verificationToken("secret@example.com"),
	}
	if buf.Len() == 0 {
		t.Fatal("expected audit output")
	}
	for _, needle := range needles {
		if needle != "" && buf.Contains(needle) {
			t.Fatalf("sensitive value leaked into audit log: %q", needle)
		}
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		AccountID: "a1",
		IP:        "127.0.0.1",
		Success:   true,
	})

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains(`"account_id":"a1"`) {
		t.Fatal("expected JSON log line to contain account id")
	}
	if !buf.Contains("\n") {
		t.Fatal("expected newline-terminated record")
	}
}

func TestAuditErrorCodeClassification(t *testing.T) {
	cases := map[error]AuditErrorCode{
		ErrInvalidCredentials:       auditErrInvalidCredentials,
		ErrCurrentPasswordIncorrect: auditErrInvalidCredentials,
		ErrRefreshInvalid:           auditErrInvalidToken,
		ErrPasswordResetInvalid:     auditErrInvalidToken,
		ErrAccountLocked:            auditErrAccountLocked,
		ErrAccountExists:            auditErrDuplicate,
		ErrChallengeRateLimited:     auditErrRateLimited,
		ErrBillingUnavailable:       auditErrUnavailable,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("%v: got %q, want %q", err, got, want)
		}
	}
	if got := auditErrorCode(unavailable(context.DeadlineExceeded)); got != auditErrUnavailable {
		t.Fatalf("wrapped store failure classified as %q", got)
	}
	if got := auditErrorCode(nil); got != "" {
		t.Fatalf("nil error classified as %q", got)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), v)
}
