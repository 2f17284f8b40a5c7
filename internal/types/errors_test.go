package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeUpstreamResponseShape,
		Message: "response is missing data.hosted_url",
	}

	expected := "upstream_response_shape: response is missing data.hosted_url"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorErrorFormat_WithCause(t *testing.T) {
	appErr := NewAppError(ErrCodeUpstreamTransport, "POST /charges failed", errors.New("connection refused"))

	expected := "upstream_transport_error: POST /charges failed: connection refused"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("dial tcp: i/o timeout")
	appErr := NewAppError(ErrCodeUpstreamTransport, "request failed", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error through Unwrap")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeUpstreamHTTPStatus, "status 500", nil)
	wrappedErr := fmt.Errorf("create charge: %w", appErr)

	var target *AppError
	if !errors.As(wrappedErr, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeUpstreamHTTPStatus {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeUpstreamHTTPStatus)
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeUpstreamHTTPStatus,
		"status 400",
		nil,
		map[string]any{DetailStatusCode: 400},
	)

	enhanced := original.WithDetails(map[string]any{DetailResponseBody: `{"error":"bad"}`})

	if _, ok := original.Details[DetailResponseBody]; ok {
		t.Error("WithDetails should not mutate the original error")
	}
	if enhanced.Details[DetailStatusCode] != 400 {
		t.Errorf("enhanced should retain original detail: got %v", enhanced.Details[DetailStatusCode])
	}
	if enhanced.Details[DetailResponseBody] != `{"error":"bad"}` {
		t.Errorf("enhanced should have new detail: got %v", enhanced.Details[DetailResponseBody])
	}
	if enhanced.Code != original.Code || enhanced.Message != original.Message {
		t.Error("Code and Message should carry over")
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeUpstreamTransport, http.StatusBadGateway},
		{ErrCodeUpstreamHTTPStatus, http.StatusBadGateway},
		{ErrCodeUpstreamMalformedBody, http.StatusBadGateway},
		{ErrCodeUpstreamResponseShape, http.StatusBadGateway},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
