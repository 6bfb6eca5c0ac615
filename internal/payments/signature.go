package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMissingSecret indicates the verifier was built without a gateway secret.
// This is a configuration fault, not a bad request.
var ErrMissingSecret = errors.New("payments: signature secret is not configured")

// Signature computes the gateway signature for the given order and payment
// identifiers: hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Signature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the supplied signature binds the order and
// payment identifiers under the shared secret. The comparison is constant
// time. A mismatch is not an error; only a missing secret is.
func VerifySignature(orderID, paymentID, signature, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}
	expected := Signature(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// SignatureVerifier binds a secret once at startup so business logic never
// reads ambient configuration.
type SignatureVerifier struct {
	secret string
}

// NewSignatureVerifier constructs a verifier for the given gateway secret.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &SignatureVerifier{secret: secret}, nil
}

// Verify checks the signature against the verifier's secret.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	if v == nil {
		return false
	}
	ok, err := VerifySignature(orderID, paymentID, signature, v.secret)
	return err == nil && ok
}
