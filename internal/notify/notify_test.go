package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"commercepay/internal/types"
)

const confirmedDelivery = `{
	"id": "delivery-1",
	"event": {
		"id": "evt-1",
		"type": "charge:confirmed",
		"data": {
			"id": "charge-uuid-1",
			"code": "66BEOV2A",
			"name": "Test Product",
			"metadata": {"customer_id": "123", "customer_name": "John Doe"},
			"pricing": {"local": {"amount": "100.00", "currency": "USD"}}
		}
	}
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeEvent(t *testing.T, raw string) *types.WebhookEvent {
	t.Helper()
	var event types.WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return &event
}
