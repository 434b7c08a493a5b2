// Package platform is the downstream consumer boundary: it resolves a
// bearer token for "the connection to use right now" and issues data
// requests against the connected environment.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/envlink/envlink/internal/auth"
	"github.com/envlink/envlink/internal/connection"
	log "github.com/sirupsen/logrus"
)

// Session supplies the bearer token and endpoint for outbound requests.
type Session interface {
	// Token returns a valid access token, reauthenticating when the cached
	// one has expired.
	Token(ctx context.Context) (string, error)
	// Endpoint returns the base URL of the active environment.
	Endpoint() (string, error)
}

// expirySkew renews tokens slightly before their claimed expiry.
const expirySkew = 30 * time.Second

// OverlaySession reads the active connection overlay first and falls back to
// the dispatcher's reauthentication when the cached token is stale. The
// dispatcher and overlay are injected; nothing here reaches back into the
// manager.
type OverlaySession struct {
	overlay    *connection.Overlay
	dispatcher *auth.Dispatcher
}

// NewOverlaySession builds a session over the active connection overlay.
func NewOverlaySession(overlay *connection.Overlay, dispatcher *auth.Dispatcher) *OverlaySession {
	return &OverlaySession{overlay: overlay, dispatcher: dispatcher}
}

func (s *OverlaySession) active() (*connection.Record, error) {
	rec, err := s.overlay.Get()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no active connection")
	}
	return rec, nil
}

// Token returns the active connection's access token, reauthenticating when
// the token's exp claim says it is (nearly) expired.
func (s *OverlaySession) Token(ctx context.Context) (string, error) {
	rec, err := s.active()
	if err != nil {
		return "", err
	}
	if rec.AccessToken == "" {
		return "", fmt.Errorf("active connection %q has no cached token", rec.Name)
	}

	if claims, errParse := auth.ParseClaims(rec.AccessToken); errParse == nil {
		if exp := claims.ExpiresAt(); !exp.IsZero() && time.Now().Add(expirySkew).After(exp) {
			log.Debugf("cached token for %q expires at %s, reauthenticating", rec.Name, exp.Format(time.RFC3339))
			if _, errReauth := s.dispatcher.Reauthenticate(ctx, rec); errReauth != nil {
				return "", fmt.Errorf("reauthentication for %q failed: %w", rec.Name, errReauth)
			}
		}
	}
	return rec.AccessToken, nil
}

// Endpoint returns the active connection's base URL.
func (s *OverlaySession) Endpoint() (string, error) {
	rec, err := s.active()
	if err != nil {
		return "", err
	}
	return rec.EndpointURL, nil
}
