package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v4"
)

type stubVerifier struct {
	claims *TokenClaims
	err    error
}

func (s *stubVerifier) VerifyToken(context.Context, string) (*TokenClaims, error) {
	return s.claims, s.err
}

func newRequestWithToken() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer token-value")
	return req
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{claims: &TokenClaims{}})
	handler := authn.RequireAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: ErrTokenExpired})
	handler := authn.RequireAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequestWithToken())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthAppliesFallbackRole(t *testing.T) {
	claims := &TokenClaims{
		Email:            "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	authn := NewAuthenticator(&stubVerifier{claims: claims})

	var captured *Identity
	handler := authn.RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequestWithToken())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured == nil || captured.UID != "user-1" {
		t.Fatalf("identity not stored in context: %#v", captured)
	}
	if !captured.HasRole(RoleUser) {
		t.Fatalf("fallback role not applied: %v", captured.Roles)
	}
}

func TestRequireAuthEnforcesRoles(t *testing.T) {
	claims := &TokenClaims{
		Role:             "user",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	authn := NewAuthenticator(&stubVerifier{claims: claims})
	handler := authn.RequireAuth(RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequestWithToken())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRolesFromClaimShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want int
	}{
		{"string", "admin", 1},
		{"slice", []any{"admin", "notary", "admin"}, 2},
		{"empty", nil, 0},
		{"number", 42, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rolesFromClaim(tc.raw); len(got) != tc.want {
				t.Fatalf("expected %d roles, got %v", tc.want, got)
			}
		})
	}
}
