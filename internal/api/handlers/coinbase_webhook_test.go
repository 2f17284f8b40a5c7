package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commercepay/internal/core"
	"commercepay/internal/types"
	"commercepay/internal/webhook"
)

const testWebhookSecret = "whsec_handler_test"

const confirmedEvent = `{
	"id": "f2f7a1d3-2c3a-4b9e-9a1e-6d0a2f1b7c11",
	"scheduled_for": "2026-03-01T10:00:00Z",
	"event": {
		"id": "24934862-d980-46cb-9402-43c81b0cdba6",
		"type": "charge:confirmed",
		"api_version": "2018-03-22",
		"created_at": "2026-03-01T10:00:00Z",
		"data": {
			"id": "c0ffee00-1111-2222-3333-444455556666",
			"code": "66BEOV2A",
			"name": "Test Product",
			"description": "A test product",
			"hosted_url": "https://commerce.coinbase.com/charges/66BEOV2A",
			"metadata": {"customer_id": "123", "customer_name": "John Doe"},
			"pricing": {"local": {"amount": "100.00", "currency": "USD"}}
		}
	}
}`

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []*types.WebhookEvent
	raws   [][]byte
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, event *types.WebhookEvent, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.raws = append(s.raws, raw)
	return s.err
}

type dispatchCall struct {
	sink, eventType string
	failed          bool
}

type recordingMetrics struct {
	verdicts   []types.VerificationResult
	dispatches []dispatchCall
}

func (m *recordingMetrics) RecordVerification(_ context.Context, result types.VerificationResult) {
	m.verdicts = append(m.verdicts, result)
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, sink, eventType string, err error) {
	m.dispatches = append(m.dispatches, dispatchCall{sink, eventType, err != nil})
}

func newTestHandler(sinks ...EventSink) (*CoinbaseWebhookHandler, *recordingMetrics) {
	metrics := &recordingMetrics{}
	h := NewCoinbaseWebhookHandler(
		webhook.NewVerifier(types.SecretString(testWebhookSecret)),
		sinks,
		metrics,
		nil,
	)
	return h, metrics
}

func serve(t *testing.T, h *CoinbaseWebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/coinbase", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCoinbaseWebhook_ValidDelivery(t *testing.T) {
	sink := &recordingSink{name: "discord"}
	h, metrics := newTestHandler(sink)

	body := []byte(confirmedEvent)
	rec := serve(t, h, body, webhook.Sign(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"event_id":"24934862-d980-46cb-9402-43c81b0cdba6"}`, rec.Body.String())

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, types.EventChargeConfirmed, event.Event.Type)
	assert.Equal(t, "Test Product", event.Event.Data.Name)
	assert.Equal(t, "123", event.Event.Data.Metadata.CustomerID.String())
	assert.Equal(t, "100", event.Event.Data.LocalAmount().String())
	assert.Equal(t, body, sink.raws[0], "sinks receive the exact verified bytes")

	assert.Equal(t, []types.VerificationResult{types.VerificationValid}, metrics.verdicts)
	assert.Equal(t, []dispatchCall{{"discord", types.EventChargeConfirmed, false}}, metrics.dispatches)
}

func TestCoinbaseWebhook_MissingSignature(t *testing.T) {
	sink := &recordingSink{name: "sqs"}
	h, metrics := newTestHandler(sink)

	rec := serve(t, h, []byte(confirmedEvent), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), errorCode(t, rec))
	assert.Empty(t, sink.events)
	assert.Equal(t, []types.VerificationResult{types.VerificationMissing}, metrics.verdicts)
}

func TestCoinbaseWebhook_ForgedSignature(t *testing.T) {
	body := []byte(confirmedEvent)
	forgeries := map[string]string{
		"wrong secret":  webhook.Sign("attacker_secret", body),
		"uppercase hex":  strings.ToUpper(webhook.Sign(testWebhookSecret, body)),
		"truncated":     webhook.Sign(testWebhookSecret, body)[:63],
		"not hex":       "zzzz",
		"tampered body": webhook.Sign(testWebhookSecret, []byte(strings.Replace(confirmedEvent, "100.00", "1.00", 1))),
	}

	for name, sig := range forgeries {
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{name: "discord"}
			h, metrics := newTestHandler(sink)

			rec := serve(t, h, body, sig)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, string(types.ErrCodeAuthTokenInvalid), errorCode(t, rec))
			assert.Empty(t, sink.events)
			assert.Equal(t, []types.VerificationResult{types.VerificationInvalid}, metrics.verdicts)
		})
	}
}

func TestCoinbaseWebhook_ForgedBodyIsNeverParsed(t *testing.T) {
	// A forged delivery with an unparseable body must fail on the signature,
	// not on JSON decoding.
	h, _ := newTestHandler()
	rec := serve(t, h, []byte(`{not json`), "00")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenInvalid), errorCode(t, rec))
}

func TestCoinbaseWebhook_UnconfiguredSecretRejectsEverything(t *testing.T) {
	h := NewCoinbaseWebhookHandler(webhook.NewVerifier(""), nil, nil, nil)

	body := []byte(confirmedEvent)
	rec := serve(t, h, body, webhook.Sign("", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCoinbaseWebhook_InvalidJSON(t *testing.T) {
	sink := &recordingSink{name: "discord"}
	h, _ := newTestHandler(sink)

	body := []byte(`{"event": [}`)
	rec := serve(t, h, body, webhook.Sign(testWebhookSecret, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidJSON), errorCode(t, rec))
	assert.Empty(t, sink.events)
}

func TestCoinbaseWebhook_NumericMetadataIsDelivered(t *testing.T) {
	sink := &recordingSink{name: "discord"}
	h, metrics := newTestHandler(sink)

	body := []byte(strings.Replace(confirmedEvent,
		`"metadata": {"customer_id": "123", "customer_name": "John Doe"}`,
		`"metadata": {"customer_id": 123, "customer_name": "John Doe", "plan": 7}`, 1))
	rec := serve(t, h, body, webhook.Sign(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, sink.events, 1)
	assert.Equal(t, "123", sink.events[0].Event.Data.Metadata.CustomerID.String())
	assert.Equal(t, body, sink.raws[0])
	assert.Equal(t, []dispatchCall{{"discord", types.EventChargeConfirmed, false}}, metrics.dispatches)
}

func TestCoinbaseWebhook_FieldTypeMismatchIsDelivered(t *testing.T) {
	sink := &recordingSink{name: "sqs"}
	h, _ := newTestHandler(sink)

	body := []byte(`{"id":"d-9","scheduled_for":1709287200,"event":{"id":"e-9","type":"charge:pending","api_version":2018,"data":{"code":"XYZ","name":["not","a","string"]}}}`)
	rec := serve(t, h, body, webhook.Sign(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true,"event_id":"e-9"}`, rec.Body.String())

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, types.EventChargePending, event.Event.Type)
	assert.Equal(t, "XYZ", event.Event.Data.Code)
	assert.Empty(t, event.Event.Data.Name)
	assert.Equal(t, body, sink.raws[0])
}

func TestCoinbaseWebhook_BodyTooLarge(t *testing.T) {
	h, _ := newTestHandler()

	body := bytes.Repeat([]byte("a"), maxWebhookBodySize+1)
	rec := serve(t, h, body, webhook.Sign(testWebhookSecret, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidValue), errorCode(t, rec))
}

func TestCoinbaseWebhook_SinkFailureStillAcknowledged(t *testing.T) {
	failing := &recordingSink{name: "discord", err: errors.New("discord returned 500")}
	healthy := &recordingSink{name: "sqs"}
	h, metrics := newTestHandler(failing, healthy)

	body := []byte(confirmedEvent)
	rec := serve(t, h, body, webhook.Sign(testWebhookSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1, "later sinks still run after a failure")
	assert.Equal(t, []dispatchCall{
		{"discord", types.EventChargeConfirmed, true},
		{"sqs", types.EventChargeConfirmed, false},
	}, metrics.dispatches)
}

func TestCoinbaseWebhook_ThroughServerChassis(t *testing.T) {
	sink := &recordingSink{name: "discord"}
	h, _ := newTestHandler(sink)

	srv, err := core.NewServer(testConfig(), discardLogger())
	require.NoError(t, err)
	srv.Registrars = []core.RouteRegistrar{h.RegisterRoutes}
	srv.MountRoutes()

	body := []byte(confirmedEvent)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/coinbase", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(testWebhookSecret, body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Len(t, sink.events, 1)
}
