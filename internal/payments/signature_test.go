package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func referenceSignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureMatchesReference(t *testing.T) {
	const (
		orderID   = "order_MhN2Kq7894xyz"
		paymentID = "pay_NpQ3Lr1234abc"
		secret    = "test-gateway-secret"
	)

	sig := referenceSignature(orderID, paymentID, secret)

	ok, err := VerifySignature(orderID, paymentID, sig, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a matching signature to verify")
	}
}

func TestVerifySignatureRejectsSingleCharacterMutations(t *testing.T) {
	const (
		orderID   = "order_MhN2Kq7894xyz"
		paymentID = "pay_NpQ3Lr1234abc"
		secret    = "test-gateway-secret"
	)

	sig := referenceSignature(orderID, paymentID, secret)

	for i := range sig {
		mutated := []byte(sig)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		ok, err := VerifySignature(orderID, paymentID, string(mutated), secret)
		if err != nil {
			t.Fatalf("position %d: unexpected error: %v", i, err)
		}
		if ok {
			t.Fatalf("position %d: mutated signature must not verify", i)
		}
	}
}

func TestVerifySignatureWrongInputs(t *testing.T) {
	sig := referenceSignature("order_a", "pay_a", "secret")

	if ok, _ := VerifySignature("order_b", "pay_a", sig, "secret"); ok {
		t.Fatal("different order id must not verify")
	}
	if ok, _ := VerifySignature("order_a", "pay_b", sig, "secret"); ok {
		t.Fatal("different payment id must not verify")
	}
	if ok, _ := VerifySignature("order_a", "pay_a", sig, "other"); ok {
		t.Fatal("different secret must not verify")
	}
	if ok, _ := VerifySignature("order_a", "pay_a", "", "secret"); ok {
		t.Fatal("empty signature must not verify")
	}
}

func TestVerifySignatureMissingSecret(t *testing.T) {
	_, err := VerifySignature("order_a", "pay_a", "sig", "")
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestSignatureVerifier(t *testing.T) {
	if _, err := NewSignatureVerifier(""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret for empty secret, got %v", err)
	}

	verifier, err := NewSignatureVerifier("secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sig := referenceSignature("order_a", "pay_a", "secret")
	if !verifier.Verify("order_a", "pay_a", sig) {
		t.Fatal("expected verifier to accept a matching signature")
	}
	if verifier.Verify("order_a", "pay_a", "bogus") {
		t.Fatal("expected verifier to reject a bogus signature")
	}
}
