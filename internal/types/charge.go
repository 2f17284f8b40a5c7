package types

import "github.com/shopspring/decimal"

// PricingType selects how Coinbase Commerce prices a charge.
type PricingType string

const (
	PricingFixedPrice PricingType = "fixed_price"
	PricingNoPrice    PricingType = "no_price"
)

// DefaultCurrency is used when a ChargeRequest leaves Currency empty.
const DefaultCurrency = "USD"

// ChargeRequest describes a charge to create. It exists only for the
// duration of one create call. Fields are sent as given; the Commerce API
// decides which values it accepts.
type ChargeRequest struct {
	Name         string
	Description  string
	Amount       decimal.Decimal
	CustomerID   string
	CustomerName string
	Currency     string
	PricingType  PricingType
}

// WithDefaults returns a copy of r with Currency and PricingType filled in.
func (r ChargeRequest) WithDefaults() ChargeRequest {
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	if r.PricingType == "" {
		r.PricingType = PricingFixedPrice
	}
	return r
}

// Money is an amount in a local currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ChargeMetadata is the caller-defined metadata echoed back in webhook events.
type ChargeMetadata struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

// ChargeBody is the JSON document sent to POST /charges.
type ChargeBody struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	PricingType PricingType    `json:"pricing_type"`
	LocalPrice  Money          `json:"local_price"`
	Metadata    ChargeMetadata `json:"metadata"`
}

// NewChargeBody builds the wire body for r. Defaults are applied.
func NewChargeBody(r ChargeRequest) ChargeBody {
	r = r.WithDefaults()
	return ChargeBody{
		Name:        r.Name,
		Description: r.Description,
		PricingType: r.PricingType,
		LocalPrice: Money{
			Amount:   r.Amount,
			Currency: r.Currency,
		},
		Metadata: ChargeMetadata{
			CustomerID:   r.CustomerID,
			CustomerName: r.CustomerName,
		},
	}
}

// Payload is a decoded JSON object returned by the Commerce API.
type Payload map[string]any

// HostedURL extracts data.hosted_url. ok is false when either level is
// missing or hosted_url is not a string. An empty string is returned as is.
func (p Payload) HostedURL() (string, bool) {
	data, ok := p["data"].(map[string]any)
	if !ok {
		return "", false
	}
	url, ok := data["hosted_url"].(string)
	return url, ok
}
