package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/envlink/envlink/internal/config"
	"github.com/envlink/envlink/internal/connection"
	"github.com/envlink/envlink/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// OverlayWriter is the slice of the active connection overlay the dispatcher
// needs: persisting a freshly reauthenticated record.
type OverlayWriter interface {
	Set(rec *connection.Record) error
}

// Options carries the host-supplied hooks for the dispatcher.
type Options struct {
	// OpenURL launches the interactive login page. Defaults to nothing;
	// without it the auth URL is only logged.
	OpenURL BrowserOpener

	// LoginTimeout bounds the interactive redirect wait. Zero means the
	// configured default.
	LoginTimeout time.Duration

	// HostTokenSource supplies the delegated scheme's ambient identity.
	HostTokenSource oauth2.TokenSource

	// HTTPClient overrides the proxy-aware default, mainly for tests.
	HTTPClient *http.Client
}

// Dispatcher selects the authentication strategy for a login type and
// implements the refresh-then-fallback reauthentication protocol.
type Dispatcher struct {
	cfg        *config.Config
	httpClient *http.Client
	overlay    OverlayWriter

	password    *PasswordStrategy
	clientCred  *ClientCredentialStrategy
	interactive *InteractiveStrategy
	delegated   *DelegatedStrategy
}

// NewDispatcher wires the four strategies with shared HTTP plumbing.
func NewDispatcher(cfg *config.Config, overlay OverlayWriter, opts *Options) *Dispatcher {
	if opts == nil {
		opts = &Options{}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = util.SetProxy(cfg, &http.Client{Timeout: 30 * time.Second})
	}
	timeout := opts.LoginTimeout
	if timeout <= 0 && cfg != nil {
		timeout = time.Duration(cfg.LoginTimeoutSeconds) * time.Second
	}
	callbackPort := 0
	if cfg != nil {
		callbackPort = cfg.CallbackPort
	}
	return &Dispatcher{
		cfg:         cfg,
		httpClient:  httpClient,
		overlay:     overlay,
		password:    NewPasswordStrategy(httpClient),
		clientCred:  NewClientCredentialStrategy(httpClient),
		interactive: NewInteractiveStrategy(httpClient, opts.OpenURL, callbackPort, timeout),
		delegated:   NewDelegatedStrategy(opts.HostTokenSource),
	}
}

// Authenticate dispatches on the login type and runs the matching strategy.
func (d *Dispatcher) Authenticate(ctx context.Context, loginType connection.LoginType, creds Credentials) (*TokenResponse, error) {
	switch loginType {
	case connection.LoginPassword:
		return d.password.Authenticate(ctx, creds)
	case connection.LoginClientCredential:
		return d.clientCred.Authenticate(ctx, creds)
	case connection.LoginInteractiveBrowser:
		return d.interactive.Authenticate(ctx, creds)
	case connection.LoginDelegated:
		return d.delegated.Authenticate(ctx, creds)
	default:
		return nil, fmt.Errorf("unknown login type %q", loginType)
	}
}

// Reauthenticate obtains a fresh access token for an existing record.
//
// When the record holds a refresh token, a refresh exchange is attempted
// first; any refresh failure falls back to a full authentication with inputs
// re-derived from the record. On success the record's access token is
// overwritten (and its refresh token only when the response supplies one)
// and the record is persisted to the overlay. On total failure the record's
// token fields are left untouched.
func (d *Dispatcher) Reauthenticate(ctx context.Context, rec *connection.Record) (*TokenResponse, error) {
	if rec == nil {
		return nil, fmt.Errorf("reauthenticate: record is nil")
	}

	var token *TokenResponse
	if rec.RefreshToken != "" {
		refreshed, err := d.refreshExchange(ctx, rec.EndpointURL, rec.RefreshToken)
		if err != nil {
			log.Debugf("refresh token exchange for %q failed, falling back to %s login: %v", rec.Name, rec.LoginType, err)
		} else {
			token = refreshed
		}
	}

	if token == nil {
		fresh, err := d.Authenticate(ctx, rec.LoginType, CredentialsFromRecord(rec))
		if err != nil {
			return nil, err
		}
		token = fresh
	}

	rec.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		rec.RefreshToken = token.RefreshToken
	}
	if d.overlay != nil {
		if err := d.overlay.Set(rec); err != nil {
			return nil, fmt.Errorf("failed to persist reauthenticated connection: %w", err)
		}
	}
	return token, nil
}

// refreshExchange trades a refresh token for a new token pair, retrying
// transient failures per the configured retry count.
func (d *Dispatcher) refreshExchange(ctx context.Context, endpoint, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", publicClientID)
	form.Set("refresh_token", refreshToken)

	maxAttempts := 1
	if d.cfg != nil && d.cfg.RequestRetry > 0 {
		maxAttempts = d.cfg.RequestRetry + 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		token, err := postTokenRequest(ctx, d.httpClient, tokenEndpoint(endpoint), form)
		if err == nil {
			return token, nil
		}
		lastErr = err
		log.Warnf("Token refresh attempt %d failed: %v", attempt+1, err)
	}

	return nil, fmt.Errorf("token refresh failed after %d attempts: %w", maxAttempts, lastErr)
}
