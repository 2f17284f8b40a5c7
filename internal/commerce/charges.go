package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"commercepay/internal/types"
)

// DefaultBaseURL is the Coinbase Commerce API root.
const DefaultBaseURL = "https://api.commerce.coinbase.com"

// maxErrorBodySize bounds how much of a non-2xx body is kept on the error.
const maxErrorBodySize = 4096

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	APIKey     types.SecretString
	APIVersion string // X-CC-Version; omitted when empty
	BaseURL    string // Override for testing; defaults to DefaultBaseURL
	UserAgent  string
	Logger     *slog.Logger
}

// Client implements ChargeService against the Coinbase Commerce REST API.
// Configuration is fixed at construction; the client keeps no per-call
// state and may be shared between goroutines.
type Client struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a Client. The API key is required.
func NewClient(httpClient *http.Client, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey.IsZero() {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"Coinbase Commerce API key is required",
			nil,
		)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "commercepay/1.0"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    NewBaseClient(httpClient, cfg.APIKey, cfg.APIVersion, userAgent),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// CreateCharge issues POST /charges and returns data.hosted_url of the
// created charge. The request is sent as given once currency and pricing
// type defaults are applied; the API alone decides whether it is acceptable.
func (c *Client) CreateCharge(ctx context.Context, req types.ChargeRequest) (string, error) {
	req = req.WithDefaults()

	body, err := json.Marshal(types.NewChargeBody(req))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize charge request",
			err,
		)
	}

	c.logger.InfoContext(ctx, "creating Coinbase Commerce charge",
		"name", req.Name,
		"amount", req.Amount.String(),
		"currency", req.Currency,
		"pricing_type", string(req.PricingType),
	)

	result, err := c.call(ctx, "CreateCharge", http.MethodPost, "/charges", body)
	if err != nil {
		return "", err
	}

	object, _ := result.(map[string]any)
	hostedURL, ok := types.Payload(object).HostedURL()
	if !ok {
		c.logger.WarnContext(ctx, "Coinbase Commerce charge response missing hosted_url")
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamResponseShape,
			"charge response is missing data.hosted_url",
			nil,
			map[string]any{
				types.DetailOperation:    "CreateCharge",
				types.DetailMissingField: "data.hosted_url",
			},
		)
	}

	c.logger.InfoContext(ctx, "Coinbase Commerce charge created", "hosted_url", hostedURL)
	return hostedURL, nil
}

// ListCharges issues GET /charges and returns the decoded body unmodified,
// whatever its JSON type.
func (c *Client) ListCharges(ctx context.Context) (any, error) {
	c.logger.InfoContext(ctx, "listing Coinbase Commerce charges")
	return c.call(ctx, "ListCharges", http.MethodGet, "/charges", nil)
}

// CancelCharge issues POST /charges/{id}/cancel and returns the decoded body
// unmodified, whatever its JSON type. The ID is path-escaped and otherwise
// forwarded as given.
func (c *Client) CancelCharge(ctx context.Context, chargeID string) (any, error) {
	c.logger.InfoContext(ctx, "cancelling Coinbase Commerce charge", "charge_id", chargeID)
	return c.call(ctx, "CancelCharge", http.MethodPost, "/charges/"+url.PathEscape(chargeID)+"/cancel", nil)
}

// call performs one request and decodes a 2xx JSON body of any type. Outcomes:
//   - transport failure: upstream_transport_error (from BaseClient.Do)
//   - non-2xx: upstream_http_status with status_code and, when readable,
//     response_body
//   - 2xx that is not a single well-formed JSON value: upstream_malformed_body
func (c *Client) call(ctx context.Context, operation, method, path string, body []byte) (any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to create %s request", operation),
			err,
		)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Coinbase Commerce request failed",
			"operation", operation,
			"error", err,
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.handleErrorResponse(ctx, resp, operation)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamTransport,
			fmt.Sprintf("failed to read %s response body", operation),
			err,
			map[string]any{types.DetailOperation: operation},
		)
	}

	payload, err := decodeBody(raw)
	if err != nil {
		c.logger.ErrorContext(ctx, "Coinbase Commerce returned malformed JSON",
			"operation", operation,
			"status_code", resp.StatusCode,
			"error", err,
		)
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamMalformedBody,
			fmt.Sprintf("%s response is not well-formed JSON", operation),
			err,
			map[string]any{
				types.DetailOperation:    operation,
				types.DetailStatusCode:   resp.StatusCode,
				types.DetailResponseBody: truncate(raw),
			},
		)
	}

	return payload, nil
}

// handleErrorResponse builds the upstream_http_status error for a non-2xx
// response. If the body cannot be read, response_body is left out so callers
// can tell "no body available" apart from an empty body.
func (c *Client) handleErrorResponse(ctx context.Context, resp *http.Response, operation string) *types.AppError {
	details := map[string]any{
		types.DetailOperation:  operation,
		types.DetailStatusCode: resp.StatusCode,
	}

	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if readErr == nil {
		details[types.DetailResponseBody] = string(bodyBytes)
	}

	c.logger.ErrorContext(ctx, "Coinbase Commerce API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", string(bodyBytes),
	)

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamHTTPStatus,
		fmt.Sprintf("Coinbase Commerce %s returned %d", operation, resp.StatusCode),
		readErr,
		details,
	)
}

// decodeBody decodes exactly one JSON value. Numbers are kept as
// json.Number so values pass through to callers without float rounding.
func decodeBody(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("response body contains data after the first JSON value")
	}
	return value, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBodySize {
		return string(b[:maxErrorBodySize])
	}
	return string(b)
}

// Compile-time interface compliance check.
var _ ChargeService = (*Client)(nil)
