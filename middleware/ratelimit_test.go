package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/internal/rate"
)

func newTestLimiter(t *testing.T) (*rate.Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rate.New(rdb, "test"), mr
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	})
}

func serve(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	l, _ := newTestLimiter(t)
	rule := rate.Rule{Name: "api", Limit: 3, Window: time.Minute}
	h := RateLimit(l, rule, nil)(statusHandler(http.StatusOK))

	for i := 0; i < 3; i++ {
		rec := serve(h, "10.0.0.1:1000")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(2-i) {
			t.Fatalf("request %d: remaining=%q", i, got)
		}
	}

	rec := serve(h, "10.0.0.1:1000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rec.Header().Get("X-RateLimit-Limit") != "3" {
		t.Fatalf("limit header=%q", rec.Header().Get("X-RateLimit-Limit"))
	}

	if rec := serve(h, "10.0.0.2:1000"); rec.Code != http.StatusOK {
		t.Fatalf("other client blocked: %d", rec.Code)
	}
}

func TestRateLimitReportsLimitError(t *testing.T) {
	l, _ := newTestLimiter(t)
	rule := rate.Rule{Name: "payment", Limit: 1, Window: time.Minute}
	var got error
	h := RateLimit(l, rule, nil,
		WithMessage("Too many payment requests, please slow down"),
		WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTooManyRequests)
		}),
	)(statusHandler(http.StatusOK))

	serve(h, "10.0.0.1:1")
	serve(h, "10.0.0.1:1")

	var limited *LimitError
	if !errors.As(got, &limited) {
		t.Fatalf("err=%v", got)
	}
	if limited.Message != "Too many payment requests, please slow down" || limited.Rule.Name != "payment" {
		t.Fatalf("limit error=%+v", limited)
	}
	if !errors.Is(got, rate.ErrRateLimited) {
		t.Fatal("LimitError must unwrap to rate.ErrRateLimited")
	}
}

func TestRateLimitSkipSuccessful(t *testing.T) {
	l, _ := newTestLimiter(t)
	rule := rate.Rule{Name: "auth", Limit: 2, Window: time.Minute}

	ok := RateLimit(l, rule, nil, SkipSuccessful())(statusHandler(http.StatusOK))
	for i := 0; i < 5; i++ {
		if rec := serve(ok, "10.0.0.1:1"); rec.Code != http.StatusOK {
			t.Fatalf("successful request %d blocked: %d", i, rec.Code)
		}
	}

	failing := RateLimit(l, rule, nil, SkipSuccessful())(statusHandler(http.StatusUnauthorized))
	serve(failing, "10.0.0.1:1")
	serve(failing, "10.0.0.1:1")
	if rec := serve(failing, "10.0.0.1:1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()
	rule := rate.Rule{Name: "api", Limit: 1, Window: time.Minute}
	h := RateLimit(l, rule, nil)(statusHandler(http.StatusOK))
	for i := 0; i < 3; i++ {
		if rec := serve(h, "10.0.0.1:1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d", i, rec.Code)
		}
	}
}

func TestClientKeyIncludesAccount(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4000"
	if got := ClientKey(req); got != "192.0.2.7" {
		t.Fatalf("anonymous key=%q", got)
	}

	req = req.WithContext(goAccount.WithSession(req.Context(), &goAccount.Session{AccountID: "acc-9"}))
	if got := ClientKey(req); got != "192.0.2.7-acc-9" {
		t.Fatalf("session key=%q", got)
	}
}
