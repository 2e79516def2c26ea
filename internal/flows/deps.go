package flows

import (
	"context"
	"time"
)

// Hooks carries the observability callbacks every flow shares. The engine
// owns the metrics registry and audit dispatcher; flows only report into them.
type Hooks struct {
	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, accountID string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)
}

func (h *Hooks) normalize() {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...any) {}
	}
}

// IssuedTokens is a freshly signed access/refresh pair.
type IssuedTokens struct {
	AccessToken   string
	RefreshToken  string
	AccessExpires time.Time
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
