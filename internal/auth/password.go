package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/envlink/envlink/internal/connection"
)

// publicClientID identifies envlink to the platform's authorization service
// for the user-centric schemes (password and interactive browser).
const publicClientID = "2f9f8a01-5d73-4e7e-9c8b-7a3d1f6b2c44"

// PasswordStrategy exchanges a username and password directly for a token
// via the resource-owner password grant.
type PasswordStrategy struct {
	httpClient *http.Client
}

// NewPasswordStrategy builds the password strategy.
func NewPasswordStrategy(httpClient *http.Client) *PasswordStrategy {
	return &PasswordStrategy{httpClient: httpClient}
}

// Authenticate performs the password grant against the environment's token
// endpoint.
func (s *PasswordStrategy) Authenticate(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, newAuthError(connection.LoginPassword, fmt.Errorf("username and password are required"))
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", publicClientID)
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)
	form.Set("scope", scopeFor(creds.Endpoint))

	token, err := postTokenRequest(ctx, s.httpClient, tokenEndpoint(creds.Endpoint), form)
	if err != nil {
		return nil, newAuthError(connection.LoginPassword, err)
	}
	return token, nil
}
