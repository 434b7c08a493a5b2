package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/envlink/envlink/internal/connection"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// BrowserOpener launches the login page. Injected so hosts (and tests) can
// substitute their own redirect-capable opener.
type BrowserOpener func(url string) error

// InteractiveStrategy runs the browser-based authorization code flow with
// PKCE: it opens the login page, listens on a loopback port for the redirect
// carrying the authorization result, and exchanges the code for tokens.
type InteractiveStrategy struct {
	httpClient   *http.Client
	openURL      BrowserOpener
	callbackPort int

	// timeout is the hard ceiling on the redirect wait. The caller's ctx
	// bounds the wait as well; whichever fires first wins.
	timeout time.Duration
}

// NewInteractiveStrategy builds the interactive browser strategy.
func NewInteractiveStrategy(httpClient *http.Client, openURL BrowserOpener, callbackPort int, timeout time.Duration) *InteractiveStrategy {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &InteractiveStrategy{
		httpClient:   httpClient,
		openURL:      openURL,
		callbackPort: callbackPort,
		timeout:      timeout,
	}
}

// Authenticate opens an interactive login page and waits for the redirect.
// The wait is bounded by both the configured timeout and ctx.
func (s *InteractiveStrategy) Authenticate(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	conf := &oauth2.Config{
		ClientID:    publicClientID,
		RedirectURL: fmt.Sprintf("http://localhost:%d/callback", s.callbackPort),
		Scopes:      []string{scopeFor(creds.Endpoint)},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authorizeEndpoint(creds.Endpoint),
			TokenURL: tokenEndpoint(creds.Endpoint),
		},
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	server := &http.Server{Addr: fmt.Sprintf(":%d", s.callbackPort), Handler: mux}

	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if errParam := query.Get("error"); errParam != "" {
			_, _ = fmt.Fprintf(w, "Authentication failed: %s", errParam)
			errChan <- fmt.Errorf("authorization failed via callback: %s", errParam)
			return
		}
		if query.Get("state") != state {
			_, _ = fmt.Fprint(w, "Authentication failed: state mismatch.")
			errChan <- fmt.Errorf("state mismatch in callback")
			return
		}
		code := query.Get("code")
		if code == "" {
			_, _ = fmt.Fprint(w, "Authentication failed: code not found.")
			errChan <- fmt.Errorf("code not found in callback")
			return
		}
		_, _ = fmt.Fprint(w, "<html><body><h1>Authentication successful!</h1><p>You can close this window.</p></body></html>")
		codeChan <- code
	})

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("callback listener failed: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shut down callback listener: %v", err)
		}
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	log.Infof("Opening authentication page in your browser.\nIf it does not open, please navigate to this URL:\n\n%s\n", authURL)

	if s.openURL != nil {
		if err := s.openURL(authURL); err != nil {
			log.Errorf("Failed to open browser: %v. Please open the URL manually.", err)
		}
	}

	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errChan:
		return nil, newAuthError(connection.LoginInteractiveBrowser, err)
	case <-time.After(s.timeout):
		return nil, newAuthError(connection.LoginInteractiveBrowser, fmt.Errorf("login timed out after %s", s.timeout))
	case <-ctx.Done():
		return nil, newAuthError(connection.LoginInteractiveBrowser, ctx.Err())
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	token, err := conf.Exchange(ctx, authCode, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, newAuthError(connection.LoginInteractiveBrowser, fmt.Errorf("failed to exchange code: %w", err))
	}
	if token.AccessToken == "" {
		return nil, newAuthError(connection.LoginInteractiveBrowser, fmt.Errorf("token response missing access_token"))
	}

	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}, nil
}
