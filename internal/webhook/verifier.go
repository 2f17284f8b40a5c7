// Package webhook verifies Coinbase Commerce webhook deliveries.
//
// Coinbase signs each delivery with HMAC-SHA256 keyed by the endpoint's shared
// secret over the raw request body, and sends the lowercase hex digest in the
// X-Cc-Webhook-Signature header. Verification must run on the exact bytes read
// from the wire, before any JSON decoding: re-encoding or whitespace changes
// break the digest.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"commercepay/internal/types"
)

// SignatureHeader is the request header carrying the delivery signature.
const SignatureHeader = "X-Cc-Webhook-Signature"

// Verdict is the outcome of a signature check.
type Verdict int

const (
	// Invalid is the zero value so an unset Verdict never reads as authentic.
	Invalid Verdict = iota
	Valid
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	if v == Valid {
		return "valid"
	}
	return "invalid"
}

// VerifySignature reports whether claimedSignature is the hex HMAC-SHA256 of
// rawBody keyed by secret.
//
// The comparison is constant time over the full digest: hmac.Equal does not
// stop at the first differing byte. Empty, truncated, non-hex, and uppercase
// signatures are simply unequal and yield Invalid. An empty secret yields
// Invalid for every input.
func VerifySignature(secret string, rawBody []byte, claimedSignature string) Verdict {
	if secret == "" {
		return Invalid
	}
	expected := computeSignature(secret, rawBody)
	if hmac.Equal([]byte(expected), []byte(claimedSignature)) {
		return Valid
	}
	return Invalid
}

// Sign returns the signature Coinbase would send for rawBody. It is used to
// build fixtures and to exercise a receiver locally.
func Sign(secret string, rawBody []byte) string {
	return computeSignature(secret, rawBody)
}

// computeSignature computes HMAC-SHA256 of body with the UTF-8 bytes of key
// and returns it as a lowercase hex string.
func computeSignature(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier binds a webhook secret so handlers do not carry the plaintext
// around. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret types.SecretString
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret types.SecretString) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks rawBody against the value of the X-Cc-Webhook-Signature header.
func (v *Verifier) Verify(rawBody []byte, signature string) Verdict {
	return VerifySignature(v.secret.Unmask(), rawBody, signature)
}

// Configured reports whether a secret is set.
func (v *Verifier) Configured() bool {
	return !v.secret.IsZero()
}
