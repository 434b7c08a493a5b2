package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/envlink/envlink/internal/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCallbackPort = 53691

// redirectOpener plays the browser: it parses the authorization URL and
// immediately drives the redirect back to the loopback listener.
func redirectOpener(t *testing.T, code string) BrowserOpener {
	t.Helper()
	return func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		query := parsed.Query()
		redirectURI := query.Get("redirect_uri")
		state := query.Get("state")
		go func() {
			// Give the loopback listener a moment to come up.
			for i := 0; i < 50; i++ {
				resp, errGet := http.Get(fmt.Sprintf("%s?code=%s&state=%s", redirectURI, code, state))
				if errGet == nil {
					_ = resp.Body.Close()
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
		}()
		return nil
	}
}

func TestInteractiveStrategyRoundTrip(t *testing.T) {
	ts := newTokenServer(t)

	strategy := NewInteractiveStrategy(ts.srv.Client(), redirectOpener(t, "test-code"), testCallbackPort, 10*time.Second)
	token, err := strategy.Authenticate(context.Background(), Credentials{Endpoint: ts.srv.URL})
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
}

func TestInteractiveStrategyStateMismatch(t *testing.T) {
	ts := newTokenServer(t)

	opener := func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirectURI := parsed.Query().Get("redirect_uri")
		go func() {
			for i := 0; i < 50; i++ {
				resp, errGet := http.Get(redirectURI + "?code=test-code&state=forged")
				if errGet == nil {
					_ = resp.Body.Close()
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
		}()
		return nil
	}

	strategy := NewInteractiveStrategy(ts.srv.Client(), opener, testCallbackPort+1, 10*time.Second)
	_, err := strategy.Authenticate(context.Background(), Credentials{Endpoint: ts.srv.URL})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, connection.LoginInteractiveBrowser, authErr.Scheme)
}

func TestInteractiveStrategyTimesOut(t *testing.T) {
	ts := newTokenServer(t)

	// An opener that never drives the redirect.
	opener := func(string) error { return nil }

	strategy := NewInteractiveStrategy(ts.srv.Client(), opener, testCallbackPort+2, 200*time.Millisecond)
	start := time.Now()
	_, err := strategy.Authenticate(context.Background(), Credentials{Endpoint: ts.srv.URL})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestInteractiveStrategyHonorsContextCancellation(t *testing.T) {
	ts := newTokenServer(t)
	opener := func(string) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	strategy := NewInteractiveStrategy(ts.srv.Client(), opener, testCallbackPort+3, time.Minute)
	_, err := strategy.Authenticate(ctx, Credentials{Endpoint: ts.srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
