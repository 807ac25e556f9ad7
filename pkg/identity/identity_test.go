package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// unsignedToken builds a JWT-shaped token with the given exp claim. The
// signature is garbage, only the claims need to parse.
func unsignedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	claims, err := json.Marshal(map[string]any{"exp": expiresAt.Unix(), "email": "ops@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	return header + "." + base64.RawURLEncoding.EncodeToString(claims) + ".c2ln"
}

func TestStaticTokenSource(t *testing.T) {
	source := &StaticTokenSource{AccessToken: "fixed"}

	token, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "fixed" {
		t.Errorf("unexpected token %q", token)
	}

	empty := &StaticTokenSource{}
	if _, err := empty.Token(context.Background()); err != ErrNoCredentials {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}

func TestLoginTokenSourceCachesUntilExpiry(t *testing.T) {
	var logins atomic.Int64
	issued := unsignedToken(t, time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)

		var credentials loginRequest
		if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if credentials.Email != "ops@example.com" || credentials.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		json.NewEncoder(w).Encode(loginResponse{Token: issued})
	}))
	t.Cleanup(server.Close)

	source := &LoginTokenSource{
		Endpoint:    server.URL,
		Email:       "ops@example.com",
		Password:    "secret",
		RefreshSkew: time.Minute,
	}

	for i := 0; i < 3; i++ {
		token, err := source.Token(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != issued {
			t.Errorf("unexpected token %q", token)
		}
	}

	if got := logins.Load(); got != 1 {
		t.Errorf("expected a single login for a fresh token, got %d", got)
	}
}

func TestLoginTokenSourceRefreshesNearExpiry(t *testing.T) {
	var logins atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every issued token is already inside the refresh skew.
		json.NewEncoder(w).Encode(loginResponse{Token: unsignedToken(t, time.Now().Add(30*time.Second))})
		logins.Add(1)
	}))
	t.Cleanup(server.Close)

	source := &LoginTokenSource{
		Endpoint:    server.URL,
		Email:       "ops@example.com",
		Password:    "secret",
		RefreshSkew: time.Minute,
	}

	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := logins.Load(); got != 2 {
		t.Errorf("expected a login per call near expiry, got %d", got)
	}
}

func TestLoginTokenSourceRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	source := &LoginTokenSource{
		Endpoint: server.URL,
		Email:    "ops@example.com",
		Password: "wrong",
	}

	if _, err := source.Token(context.Background()); err == nil {
		t.Fatal("expected an error for rejected credentials")
	}
}

func TestLoginTokenSourceMissingCredentials(t *testing.T) {
	source := &LoginTokenSource{}

	if _, err := source.Token(context.Background()); err != ErrNoCredentials {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}

func TestTokenExpiryFallsBackWhenUnreadable(t *testing.T) {
	expiry := tokenExpiry("not-a-jwt")

	remaining := time.Until(expiry)
	if remaining <= 0 || remaining > 5*time.Minute {
		t.Errorf("expected a short-lived fallback expiry, got %s away", remaining)
	}
}
