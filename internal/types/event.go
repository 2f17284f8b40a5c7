package types

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Coinbase Commerce webhook event types.
const (
	EventChargeCreated    = "charge:created"
	EventChargeConfirmed  = "charge:confirmed"
	EventChargeFailed     = "charge:failed"
	EventChargeDelayed    = "charge:delayed"
	EventChargePending    = "charge:pending"
	EventChargeResolved   = "charge:resolved"
	EventChargeCanceled   = "charge:canceled"
	EventChargeUnresolved = "charge:unresolved"
)

// WebhookEvent is the envelope of a webhook delivery. It is decoded only
// after the raw body has passed signature verification. Timestamps are kept
// as the sender's text.
type WebhookEvent struct {
	ID           string `json:"id"`
	ScheduledFor string `json:"scheduled_for"`
	Event        Event  `json:"event"`
}

// Event is the state change carried by a webhook delivery.
type Event struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	APIVersion string     `json:"api_version"`
	CreatedAt  string     `json:"created_at"`
	Data       ChargeData `json:"data"`
}

// ChargeData is the subset of the charge resource consumed by event sinks.
type ChargeData struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	HostedURL   string         `json:"hosted_url"`
	Metadata    EventMetadata  `json:"metadata"`
	Pricing     ChargePricing  `json:"pricing"`
}

// EventMetadata is the charge metadata echoed back in a webhook event.
// Values set by other integrations may not be strings.
type EventMetadata struct {
	CustomerID   FlexString `json:"customer_id"`
	CustomerName FlexString `json:"customer_name"`
}

// FlexString decodes any JSON value into text. Strings keep their value,
// null becomes empty and other values keep their JSON encoding.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	raw := bytes.TrimSpace(b)
	if bytes.Equal(raw, []byte("null")) {
		*f = ""
		return nil
	}
	*f = FlexString(raw)
	return nil
}

// String returns f as a plain string.
func (f FlexString) String() string { return string(f) }

// ChargePricing holds the per-currency prices of a charge.
type ChargePricing struct {
	Local Money `json:"local"`
}

// LocalAmount returns the charge price in its local currency.
func (d ChargeData) LocalAmount() decimal.Decimal {
	return d.Pricing.Local.Amount
}
