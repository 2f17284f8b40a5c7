// Package handlers contains the HTTP handlers of the webhook receiver.
//
// The Coinbase Commerce webhook route is public: it is called directly by
// Coinbase and authenticated only by the X-Cc-Webhook-Signature HMAC over
// the raw request body.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"commercepay/internal/core"
	"commercepay/internal/types"
	"commercepay/internal/webhook"
)

// maxWebhookBodySize caps a webhook payload at 64 KB.
const maxWebhookBodySize = 64 * 1024

// EventSink receives verified webhook events. raw is the exact body the
// signature was computed over.
type EventSink interface {
	Name() string
	Deliver(ctx context.Context, event *types.WebhookEvent, raw []byte) error
}

// WebhookMetrics records verification verdicts and sink outcomes.
type WebhookMetrics interface {
	RecordVerification(ctx context.Context, result types.VerificationResult)
	RecordDispatch(ctx context.Context, sink, eventType string, err error)
}

// SignatureVerifier checks a delivery's signature. *webhook.Verifier
// satisfies it.
type SignatureVerifier interface {
	Verify(rawBody []byte, signature string) webhook.Verdict
}

// CoinbaseWebhookHandler verifies Coinbase Commerce deliveries and fans them
// out to the configured sinks.
type CoinbaseWebhookHandler struct {
	verifier SignatureVerifier
	sinks    []EventSink
	metrics  WebhookMetrics
	logger   *slog.Logger
}

// NewCoinbaseWebhookHandler creates a CoinbaseWebhookHandler. metrics and
// logger may be nil.
func NewCoinbaseWebhookHandler(
	verifier SignatureVerifier,
	sinks []EventSink,
	metrics WebhookMetrics,
	logger *slog.Logger,
) *CoinbaseWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &CoinbaseWebhookHandler{
		verifier: verifier,
		sinks:    sinks,
		metrics:  metrics,
		logger:   logger,
	}
}

// RegisterRoutes mounts POST /webhooks/coinbase.
func (h *CoinbaseWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/coinbase", h.Handle)
}

type webhookAck struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id"`
}

// Handle processes one webhook delivery:
//  1. Reads the raw body (64 KB limit).
//  2. Requires X-Cc-Webhook-Signature (401 auth_token_missing).
//  3. Verifies the HMAC over the raw bytes (401 auth_token_invalid).
//  4. Parses the event JSON (400 validation_invalid_json only when the body
//     is not well-formed JSON).
//  5. Delivers to every sink; sink failures are logged, not returned.
//  6. Returns 200 so Coinbase does not redeliver an accepted event.
func (h *CoinbaseWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read webhook body", "error", err)
		msg := "failed to read request body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body must not exceed 64KB"
		}
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidValue, msg, err))
		return
	}

	signature := r.Header.Get(webhook.SignatureHeader)
	if signature == "" {
		h.metrics.RecordVerification(ctx, types.VerificationMissing)
		h.logger.WarnContext(ctx, "missing webhook signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing "+webhook.SignatureHeader+" header",
			nil,
		))
		return
	}

	if h.verifier.Verify(payload, signature) != webhook.Valid {
		h.metrics.RecordVerification(ctx, types.VerificationInvalid)
		h.logger.WarnContext(ctx, "webhook signature verification failed",
			"body_size", len(payload),
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			nil,
		))
		return
	}
	h.metrics.RecordVerification(ctx, types.VerificationValid)

	if !json.Valid(payload) {
		h.logger.ErrorContext(ctx, "webhook body is not valid JSON", "body_size", len(payload))
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			nil,
		))
		return
	}

	// The body is authentic at this point. Fields whose type differs from the
	// expected one are left at their zero value and the event is still
	// delivered with the raw bytes.
	var event types.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.WarnContext(ctx, "webhook event decoded with unexpected field types",
			"error", err,
		)
	}

	h.logger.InfoContext(ctx, "processing coinbase webhook event",
		"delivery_id", event.ID,
		"event_id", event.Event.ID,
		"event_type", event.Event.Type,
		"charge_code", event.Event.Data.Code,
	)

	h.dispatch(ctx, &event, payload)

	core.JSON(w, r, http.StatusOK, webhookAck{Received: true, EventID: event.Event.ID})
}

// dispatch delivers event to each sink in order. Every sink is attempted
// regardless of earlier failures.
func (h *CoinbaseWebhookHandler) dispatch(ctx context.Context, event *types.WebhookEvent, raw []byte) {
	for _, sink := range h.sinks {
		err := sink.Deliver(ctx, event, raw)
		h.metrics.RecordDispatch(ctx, sink.Name(), event.Event.Type, err)
		if err != nil {
			h.logger.ErrorContext(ctx, "webhook event delivery failed",
				"sink", sink.Name(),
				"event_id", event.Event.ID,
				"event_type", event.Event.Type,
				"error", err,
			)
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordVerification(context.Context, types.VerificationResult) {}
func (noopMetrics) RecordDispatch(context.Context, string, string, error) {}
