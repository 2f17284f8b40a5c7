package commerce

import (
	"errors"
	"strings"

	"commercepay/internal/types"
)

// Kind classifies the outcome of a ChargeService call.
type Kind string

const (
	KindSuccess       Kind = "success"
	KindTransport     Kind = "transport"
	KindHTTPStatus    Kind = "http_status"
	KindMalformedBody Kind = "malformed_body"
	KindResponseShape Kind = "response_shape"
	KindValidation    Kind = "validation" // NewClient without an API key
	KindInternal      Kind = "internal"
)

// KindOf returns the outcome kind of err. A nil error is KindSuccess; an
// error that is not a *types.AppError is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return KindInternal
	}

	switch appErr.Code {
	case types.ErrCodeUpstreamTransport:
		return KindTransport
	case types.ErrCodeUpstreamHTTPStatus:
		return KindHTTPStatus
	case types.ErrCodeUpstreamMalformedBody:
		return KindMalformedBody
	case types.ErrCodeUpstreamResponseShape:
		return KindResponseShape
	}
	if strings.HasPrefix(string(appErr.Code), "validation_") {
		return KindValidation
	}
	return KindInternal
}

// StatusCode returns the HTTP status carried by an http_status or
// malformed_body error.
func StatusCode(err error) (int, bool) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return 0, false
	}
	code, ok := appErr.Details[types.DetailStatusCode].(int)
	return code, ok
}

// ResponseBody returns the raw response text attached to err. ok is false
// when the body was never read successfully, which is distinct from an empty
// body.
func ResponseBody(err error) (string, bool) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return "", false
	}
	body, ok := appErr.Details[types.DetailResponseBody].(string)
	return body, ok
}
