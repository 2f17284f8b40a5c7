package commerce

import (
	"context"

	"commercepay/internal/types"
)

// ChargeService abstracts the Coinbase Commerce charge operations so CLI and
// handler code can be tested against fakes.
type ChargeService interface {
	// CreateCharge creates a charge and returns its hosted payment URL.
	CreateCharge(ctx context.Context, req types.ChargeRequest) (string, error)

	// ListCharges returns the GET /charges body as decoded JSON of any type.
	ListCharges(ctx context.Context) (any, error)

	// CancelCharge cancels a charge by ID and returns the decoded response
	// body of any JSON type.
	CancelCharge(ctx context.Context, chargeID string) (any, error)
}
