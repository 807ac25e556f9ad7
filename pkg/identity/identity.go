// Package identity supplies bearer tokens for the fleet hub and API. The
// rest of the console always asks for a fresh token at each (re)connect
// attempt instead of caching one itself.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var ErrNoCredentials = errors.New("no credentials configured")

// TokenSource hands out a bearer token valid for an outgoing request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed operator-supplied token.
type StaticTokenSource struct {
	AccessToken string
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", ErrNoCredentials
	}
	return s.AccessToken, nil
}

// LoginTokenSource logs in against the auth endpoint and caches the bearer
// token until its exp claim comes within the refresh skew.
type LoginTokenSource struct {
	Endpoint    string
	Email       string
	Password    string
	RefreshSkew time.Duration

	HTTPClient *http.Client

	mu          sync.Mutex
	cachedToken string
	expiresAt   time.Time
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *LoginTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedToken != "" && time.Until(s.expiresAt) > s.RefreshSkew {
		return s.cachedToken, nil
	}

	if s.Endpoint == "" || s.Email == "" {
		return "", ErrNoCredentials
	}

	body, _ := json.Marshal(loginRequest{Email: s.Email, Password: s.Password})
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected with status %d", response.StatusCode)
	}

	var decoded loginResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Token == "" {
		return "", errors.New("login response missing token")
	}

	s.cachedToken = decoded.Token
	s.expiresAt = tokenExpiry(decoded.Token)

	log.Debug().Time("expires", s.expiresAt).Msg("Refreshed access token")

	return s.cachedToken, nil
}

// tokenExpiry reads the exp claim without verifying the signature, the
// console is a client and only needs to know when to re-login. Tokens
// without a readable exp are treated as short lived.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if expiry, err := claims.GetExpirationTime(); err == nil && expiry != nil {
			return expiry.Time
		}
	}

	return time.Now().Add(5 * time.Minute)
}
