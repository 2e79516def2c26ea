package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goAccount "github.com/MrEthical07/goAccount"
)

type fakeSource struct {
	snapshot goAccount.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAccount.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func emptySnapshot() goAccount.MetricsSnapshot {
	return goAccount.MetricsSnapshot{
		Counters:   map[goAccount.MetricID]uint64{},
		Histograms: map[goAccount.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: emptySnapshot()})
	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters: map[goAccount.MetricID]uint64{
				goAccount.MetricLoginSuccess:  7,
				goAccount.MetricAccountLocked: 1,
			},
			Histograms: map[goAccount.MetricID][]uint64{
				goAccount.MetricResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"goaccount_login_success_total 7",
		"goaccount_account_locked_total 1",
		"goaccount_refresh_success_total 0",
		"# TYPE goaccount_session_resolve_seconds histogram",
		`goaccount_session_resolve_seconds_bucket{le="0.005"} 1`,
		`goaccount_session_resolve_seconds_bucket{le="+Inf"} 36`,
		"goaccount_session_resolve_seconds_count 36",
		"goaccount_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderGauges(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: emptySnapshot()}, Gauge{
		Name:  "goaccount_db_pool_acquired",
		Help:  "Acquired connections.",
		Value: func() float64 { return 3 },
	})

	out := exp.Render()
	if !strings.Contains(out, "# TYPE goaccount_db_pool_acquired gauge\ngoaccount_db_pool_acquired 3\n") {
		t.Fatalf("expected gauge sample, got:\n%s", out)
	}
	if strings.Contains(out, "goaccount_login_success_total") {
		t.Fatalf("disabled counters must not render, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters:   map[goAccount.MetricID]uint64{goAccount.MetricLoginSuccess: 1},
			Histograms: map[goAccount.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters: map[goAccount.MetricID]uint64{
				goAccount.MetricLoginSuccess:    1000,
				goAccount.MetricLoginFailure:    40,
				goAccount.MetricRefreshSuccess:  800,
				goAccount.MetricSessionResolved: 9000,
			},
			Histograms: map[goAccount.MetricID][]uint64{
				goAccount.MetricResolveLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
