package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/envlink/envlink/internal/connection"
)

// ClientCredentialStrategy exchanges app credentials for a token scoped to a
// tenant via the client-credentials grant.
type ClientCredentialStrategy struct {
	httpClient *http.Client
}

// NewClientCredentialStrategy builds the client-credential strategy.
func NewClientCredentialStrategy(httpClient *http.Client) *ClientCredentialStrategy {
	return &ClientCredentialStrategy{httpClient: httpClient}
}

// Authenticate performs the client-credentials grant against the tenant's
// token endpoint. No refresh token is issued for this scheme.
func (s *ClientCredentialStrategy) Authenticate(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.TenantID == "" {
		return nil, newAuthError(connection.LoginClientCredential, fmt.Errorf("client id, client secret and tenant id are required"))
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("scope", scopeFor(creds.Endpoint))

	token, err := postTokenRequest(ctx, s.httpClient, tenantTokenEndpoint(creds.Endpoint, creds.TenantID), form)
	if err != nil {
		return nil, newAuthError(connection.LoginClientCredential, err)
	}
	return token, nil
}
