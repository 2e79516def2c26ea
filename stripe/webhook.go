package stripe

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultTolerance is the maximum accepted age of a signed webhook.
const DefaultTolerance = webhook.DefaultTolerance

var (
	ErrNoSignature      = webhook.ErrNotSigned
	ErrInvalidHeader    = webhook.ErrInvalidHeader
	ErrNoValidSignature = webhook.ErrNoValidSignature
	ErrTooOld           = webhook.ErrTooOld
)

// Event is a verified webhook event. Data.Object holds the raw object the
// event is about.
type Event struct {
	ID         string
	Type       string
	Created    int64
	Livemode   bool
	APIVersion string
	Data       struct {
		Object json.RawMessage
	}
}

// ConstructEvent verifies the Stripe-Signature header over payload and
// decodes the event. A tolerance of zero uses [DefaultTolerance]. Events
// rendered for another API version are accepted; handlers read only the
// fields they need from Data.Object.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	raw, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	if raw.ID == "" || raw.Type == "" || raw.Data == nil {
		return nil, errors.New("stripe: webhook event without id, type or data")
	}

	ev := &Event{
		ID:         raw.ID,
		Type:       string(raw.Type),
		Created:    raw.Created,
		Livemode:   raw.Livemode,
		APIVersion: raw.APIVersion,
	}
	ev.Data.Object = raw.Data.Raw
	return ev, nil
}

// SignatureHeader builds a Stripe-Signature header for payload signed at t.
// It is used to sign test deliveries and local replays.
func SignatureHeader(t time.Time, payload []byte, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", t.Unix(), hex.EncodeToString(webhook.ComputeSignature(t, payload, secret)))
}
