// Package commerce is the client for the Coinbase Commerce charges API.
//
// Every outbound call goes through BaseClient, which stamps the headers the
// API requires and maps transport failures to types.AppError. No retries,
// backoff or circuit breaking are applied: each operation is exactly one
// request/response exchange, and timeouts or cancellation come only from the
// supplied *http.Client and context.
package commerce

import (
	"net/http"

	"commercepay/internal/types"
)

// Header names sent on every request.
const (
	HeaderAPIKey     = "X-CC-Api-Key"
	HeaderAPIVersion = "X-CC-Version"
	HeaderRequestID  = "X-Request-ID"
)

// BaseClient wraps an *http.Client and stamps the static headers onto every
// outbound request. It holds only immutable configuration and is safe for
// concurrent use.
type BaseClient struct {
	client     *http.Client
	apiKey     types.SecretString
	apiVersion string
	userAgent  string
}

// NewBaseClient creates a BaseClient. A nil httpClient means
// http.DefaultClient.
func NewBaseClient(httpClient *http.Client, apiKey types.SecretString, apiVersion, userAgent string) *BaseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BaseClient{
		client:     httpClient,
		apiKey:     apiKey,
		apiVersion: apiVersion,
		userAgent:  userAgent,
	}
}

// Do executes the HTTP request after injecting:
//  1. X-CC-Api-Key, Content-Type and Accept (application/json)
//  2. X-CC-Version when an API version is configured
//  3. User-Agent
//  4. X-Request-ID from the context, if present
//
// Any response, whatever its status, is returned as-is and the caller must
// close its body. A failure to obtain a response is returned as an AppError
// with code upstream_transport_error wrapping the cause.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set(HeaderAPIKey, c.apiKey.Unmask())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiVersion != "" {
		req.Header.Set(HeaderAPIVersion, c.apiVersion)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if reqID := types.GetRequestID(req.Context()); reqID != "" {
		req.Header.Set(HeaderRequestID, reqID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamTransport,
			req.Method+" "+req.URL.Path+" failed",
			err,
		)
	}
	return resp, nil
}
