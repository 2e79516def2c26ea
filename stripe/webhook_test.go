package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

var testPayload = []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_succeeded","created":1700000000,"data":{"object":{"id":"in_1"}}}`)

func TestConstructEventValid(t *testing.T) {
	header := SignatureHeader(time.Now(), testPayload, testSecret)

	ev, err := ConstructEvent(testPayload, header, testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "invoice.payment_succeeded", ev.Type)
	assert.Equal(t, int64(1700000000), ev.Created)
	assert.JSONEq(t, `{"id":"in_1"}`, string(ev.Data.Object))
}

func TestConstructEventIgnoresAPIVersion(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.deleted","api_version":"2020-08-27","data":{"object":{"id":"cus_1"}}}`)
	header := SignatureHeader(time.Now(), payload, testSecret)

	ev, err := ConstructEvent(payload, header, testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, "2020-08-27", ev.APIVersion)
}

func TestConstructEventRejects(t *testing.T) {
	now := time.Now()
	valid := SignatureHeader(now, testPayload, testSecret)

	cases := []struct {
		name    string
		payload []byte
		header  string
		want    error
	}{
		{"missing header", testPayload, "", ErrNoSignature},
		{"bad timestamp", testPayload, "t=abc,v1=00", ErrInvalidHeader},
		{"wrong secret", testPayload, SignatureHeader(now, testPayload, "whsec_other"), ErrNoValidSignature},
		{"tampered payload", []byte(`{"id":"evt_2","type":"x"}`), valid, ErrNoValidSignature},
		{"too old", testPayload, SignatureHeader(now.Add(-6*time.Minute), testPayload, testSecret), ErrTooOld},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ConstructEvent(tc.payload, tc.header, testSecret, DefaultTolerance)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestConstructEventRejectsGarbageHeader(t *testing.T) {
	_, err := ConstructEvent(testPayload, "nonsense", testSecret, 0)
	assert.Error(t, err)
}

func TestConstructEventRequiresData(t *testing.T) {
	payload := []byte(`{"id":"evt_3","object":"event","type":"invoice.paid"}`)
	_, err := ConstructEvent(payload, SignatureHeader(time.Now(), payload, testSecret), testSecret, 0)
	assert.Error(t, err)
}

func TestConstructEventAcceptsAnyListedSignature(t *testing.T) {
	good := SignatureHeader(time.Now(), testPayload, testSecret)
	header := good + ",v1=deadbeef,v0=ignored"

	_, err := ConstructEvent(testPayload, header, testSecret, 0)
	require.NoError(t, err)
}
