package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://tenant.example.com/"
	testAudience = "https://mcp.example.com"
	testKid      = "test-key-1"
)

type testKeys struct {
	private *rsa.PrivateKey
	jwks    *httptest.Server
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	pub := priv.Public().(*rsa.PublicKey)
	doc := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": testKid,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)

	return &testKeys{private: priv, jwks: srv}
}

func (k *testKeys) sign(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	signed, err := token.SignedString(k.private)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func validClaims() *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			Subject:   "user@clients",
		},
		Scope: "mdcalc:read mdcalc:calculate",
	}
}

func TestVerifyValidToken(t *testing.T) {
	keys := newTestKeys(t)
	v := NewVerifier(keys.jwks.URL, testIssuer, testAudience)

	claims, err := v.Verify(keys.sign(t, validClaims()))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if !claims.HasScope("mdcalc:read") {
		t.Error("expected read scope")
	}
	if !claims.HasScope("mdcalc:calculate") {
		t.Error("expected calculate scope")
	}
	if claims.HasScope("mdcalc:admin") {
		t.Error("unexpected admin scope")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	keys := newTestKeys(t)
	v := NewVerifier(keys.jwks.URL, testIssuer, testAudience)

	c := validClaims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	if _, err := v.Verify(keys.sign(t, c)); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	keys := newTestKeys(t)
	v := NewVerifier(keys.jwks.URL, testIssuer, testAudience)

	c := validClaims()
	c.Issuer = "https://evil.example.com/"

	if _, err := v.Verify(keys.sign(t, c)); err == nil {
		t.Fatal("expected wrong issuer to be rejected")
	}
}

func TestVerifyWrongAudience(t *testing.T) {
	keys := newTestKeys(t)
	v := NewVerifier(keys.jwks.URL, testIssuer, testAudience)

	c := validClaims()
	c.Audience = jwt.ClaimStrings{"https://other.example.com"}

	if _, err := v.Verify(keys.sign(t, c)); err == nil {
		t.Fatal("expected wrong audience to be rejected")
	}
}

func TestVerifyRejectsHS256(t *testing.T) {
	keys := newTestKeys(t)
	v := NewVerifier(keys.jwks.URL, testIssuer, testAudience)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = testKid
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := v.Verify(signed); err == nil {
		t.Fatal("expected HS256 token to be rejected")
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	keys := newTestKeys(t)
	v := NewVerifier(keys.jwks.URL, testIssuer, testAudience)
	if _, err := v.Verify(""); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestRequireScope(t *testing.T) {
	c := &Claims{Scope: "mdcalc:read"}
	if err := c.RequireScope("mdcalc:read"); err != nil {
		t.Errorf("expected read scope to pass: %v", err)
	}
	if err := c.RequireScope("mdcalc:calculate"); err == nil {
		t.Error("expected missing calculate scope to fail")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestMiddlewareRejectsBeforeHandler(t *testing.T) {
	keys := newTestKeys(t)
	v := NewVerifier(keys.jwks.URL, testIssuer, testAudience)

	handlerCalled := false
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	// Expired token: 401, handler never runs.
	c := validClaims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+keys.sign(t, c))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %d", rec.Code)
	}
	if handlerCalled {
		t.Error("handler must not run for an expired token")
	}

	// Missing token: 401.
	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing token, got %d", rec.Code)
	}

	// Valid token: handler runs with claims in context.
	var gotClaims *Claims
	handler = v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaims(r.Context())
	}))
	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+keys.sign(t, validClaims()))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for valid token, got %d", rec.Code)
	}
	if gotClaims == nil || !gotClaims.HasScope("mdcalc:read") {
		t.Error("expected claims injected into request context")
	}
}
