package auth

import (
	"context"
	"fmt"

	"github.com/envlink/envlink/internal/connection"
	"golang.org/x/oauth2"
)

// DelegatedStrategy draws a token from an already-authenticated
// host-platform identity. No credential prompt is involved; the host wires
// in an oauth2.TokenSource at startup.
type DelegatedStrategy struct {
	source oauth2.TokenSource
}

// NewDelegatedStrategy builds the delegated strategy. source may be nil when
// the host offers no ambient identity; authentication then fails cleanly.
func NewDelegatedStrategy(source oauth2.TokenSource) *DelegatedStrategy {
	return &DelegatedStrategy{source: source}
}

// Authenticate returns a token minted by the host identity.
func (s *DelegatedStrategy) Authenticate(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	if s.source == nil {
		return nil, newAuthError(connection.LoginDelegated, fmt.Errorf("no host platform identity is available"))
	}
	token, err := s.source.Token()
	if err != nil {
		return nil, newAuthError(connection.LoginDelegated, fmt.Errorf("host identity token request failed: %w", err))
	}
	if token.AccessToken == "" {
		return nil, newAuthError(connection.LoginDelegated, fmt.Errorf("host identity returned an empty access token"))
	}
	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}, nil
}
