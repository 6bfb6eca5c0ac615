package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

const (
	// WebhookSignatureHeader carries the gateway's hex encoded body signature.
	WebhookSignatureHeader = "X-Razorpay-Signature"

	maxWebhookBody = 1 << 20
)

// WebhookVerifier authenticates gateway webhook deliveries by recomputing the
// HMAC-SHA256 signature of the raw request body.
type WebhookVerifier struct {
	secret []byte
	header string
}

// NewWebhookVerifier constructs a verifier bound to the shared webhook secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{
		secret: []byte(strings.TrimSpace(secret)),
		header: WebhookSignatureHeader,
	}
}

// VerifyBody reports whether the signature matches the payload.
func (v *WebhookVerifier) VerifyBody(payload []byte, signature string) bool {
	if v == nil || len(v.secret) == 0 {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RequireWebhookSignature rejects requests whose body signature does not match.
// The body is buffered and restored for downstream handlers.
func (v *WebhookVerifier) RequireWebhookSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v == nil || len(v.secret) == 0 {
			respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "webhook verification unavailable")
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			respondAuthError(w, http.StatusBadRequest, "invalid_payload", "unable to read webhook payload")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(payload))

		if !v.VerifyBody(payload, r.Header.Get(v.header)) {
			respondAuthError(w, http.StatusUnauthorized, "invalid_signature", "webhook signature mismatch")
			return
		}

		next.ServeHTTP(w, r)
	})
}
