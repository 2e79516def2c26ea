package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goAccount/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	key  string
	body any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{key, body})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestEmailNotifierPublishesLinks(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewEmailNotifier(pub, "https://accounts.example.test/api/v1/auth/", discardLogger())

	require.NoError(t, n.SendVerification(context.Background(), "ada@example.com", "tok/1"))
	require.NoError(t, n.SendPasswordReset(context.Background(), "ada@example.com", "a b"))

	require.Len(t, pub.events, 2)
	assert.Equal(t, RoutingVerificationEmail, pub.events[0].key)
	verify := pub.events[0].body.(EmailEvent)
	assert.Equal(t, "ada@example.com", verify.Email)
	assert.Equal(t, "https://accounts.example.test/api/v1/auth/verify-email/tok%2F1", verify.Link)

	assert.Equal(t, RoutingPasswordResetEmail, pub.events[1].key)
	assert.Equal(t, "https://accounts.example.test/api/v1/auth/reset-password?token=a+b", pub.events[1].body.(EmailEvent).Link)
}

func TestEmailNotifierReturnsPublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("channel closed")}
	n := NewEmailNotifier(pub, "http://localhost", discardLogger())
	assert.Error(t, n.SendVerification(context.Background(), "ada@example.com", "tok"))
}

type fakePurger struct {
	calls int
	at    time.Time
	err   error
}

func (f *fakePurger) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	f.calls++
	f.at = now
	return 2, f.err
}

type fakePruner struct {
	cutoff time.Time
}

func (f *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 5, nil
}

func TestHousekeepingJobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purger := &fakePurger{}
	pruner := &fakePruner{}
	h := NewHousekeeping(purger, pruner, 30*24*time.Hour, discardLogger())
	h.now = func() time.Time { return now }

	h.PurgeExpiredTokens()
	h.PruneWebhookLedger()

	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, now, purger.at)
	assert.Equal(t, now.Add(-30*24*time.Hour), pruner.cutoff)

	purger.err = errors.New("store down")
	h.PurgeExpiredTokens()
	assert.Equal(t, 2, purger.calls)
}

func TestHousekeepingSkipsMissingBackends(t *testing.T) {
	h := NewHousekeeping(nil, nil, time.Hour, discardLogger())
	h.PurgeExpiredTokens()
	h.PruneWebhookLedger()
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(NewHousekeeping(nil, nil, 0, discardLogger()), "not a schedule", discardLogger())
	assert.Error(t, s.Start())
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(NewHousekeeping(&fakePurger{}, nil, 0, discardLogger()), "@every 1h", discardLogger())
	require.NoError(t, s.Start())
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func testConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return &config.Config{
		Env:                  "test",
		Host:                 "127.0.0.1",
		Port:                 3000,
		AppURL:               "http://localhost:3000",
		APIPrefix:            "/api/v1",
		JWTSecret:            strings.Repeat("a", 32),
		JWTExpiresIn:         "15m",
		JWTRefreshSecret:     strings.Repeat("r", 32),
		JWTRefreshExpiresIn:  "7d",
		BcryptRounds:         4,
		RedisHost:            mr.Host(),
		RedisPort:            port,
		RateLimitWindowMS:    60000,
		RateLimitMaxRequests: 100,
		CORSOrigin:           "*",
		HousekeepingSchedule: "@every 1h",
		WebhookRetention:     "30d",
	}
}

func TestNewWiresRedisBackedService(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := New(context.Background(), testConfig(t, mr), "test", discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	h := a.Handler()

	body := `{"email":"ada@example.com","password":"Correct-horse-9!","firstName":"Ada","lastName":"Lovelace"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goaccount_register_success_total 1")
	assert.Contains(t, rec.Body.String(), "goaccount_redis_pool_connections")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "payments are not mounted without stripe")
}

func TestNewFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr)
	mr.Close()

	_, err := New(context.Background(), cfg, "test", discardLogger())
	assert.ErrorContains(t, err, "connect redis")
}
