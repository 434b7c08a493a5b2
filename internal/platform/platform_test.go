package platform

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/envlink/envlink/internal/auth"
	"github.com/envlink/envlink/internal/config"
	"github.com/envlink/envlink/internal/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forgeToken(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"upn":"u@example.com","exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

func newSessionFixture(t *testing.T, accessToken string) (*OverlaySession, *connection.Overlay, *int32) {
	t.Helper()
	var refreshGrants int32
	fresh := forgeToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		atomic.AddInt32(&refreshGrants, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"%s","refresh_token":"rt-next","token_type":"Bearer"}`, fresh)
	}))
	t.Cleanup(srv.Close)

	overlay := connection.NewOverlay(connection.NewFileKV(filepath.Join(t.TempDir(), "session.json")))
	require.NoError(t, overlay.Set(&connection.Record{
		Name:         "dev",
		EndpointURL:  srv.URL,
		LoginType:    connection.LoginDelegated,
		AccessToken:  accessToken,
		RefreshToken: "rt-initial",
	}))

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	dispatcher := auth.NewDispatcher(cfg, overlay, &auth.Options{HTTPClient: srv.Client()})
	return NewOverlaySession(overlay, dispatcher), overlay, &refreshGrants
}

func TestOverlaySessionReturnsCachedToken(t *testing.T) {
	valid := forgeToken(t, time.Now().Add(time.Hour))
	session, _, refreshGrants := newSessionFixture(t, valid)

	token, err := session.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, valid, token)
	assert.Zero(t, atomic.LoadInt32(refreshGrants))
}

func TestOverlaySessionReauthenticatesExpiredToken(t *testing.T) {
	expired := forgeToken(t, time.Now().Add(-time.Minute))
	session, overlay, refreshGrants := newSessionFixture(t, expired)

	token, err := session.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, expired, token)
	assert.Equal(t, int32(1), atomic.LoadInt32(refreshGrants))

	// The refreshed token was written back to the overlay.
	rec, err := overlay.Get()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, token, rec.AccessToken)
	assert.Equal(t, "rt-next", rec.RefreshToken)
}

func TestOverlaySessionWithoutActiveConnection(t *testing.T) {
	overlay := connection.NewOverlay(connection.NewFileKV(filepath.Join(t.TempDir(), "session.json")))
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	session := NewOverlaySession(overlay, auth.NewDispatcher(cfg, overlay, nil))

	_, err := session.Token(context.Background())
	require.Error(t, err)
	_, err = session.Endpoint()
	require.Error(t, err)
}

func TestClientWhoAmI(t *testing.T) {
	valid := forgeToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/data/WhoAmI", r.URL.Path)
		require.Equal(t, "Bearer "+valid, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"UserId":"user-1","OrganizationId":"org-1","UserPrincipalName":"u@example.com"}`)
	}))
	defer srv.Close()

	overlay := connection.NewOverlay(connection.NewFileKV(filepath.Join(t.TempDir(), "session.json")))
	require.NoError(t, overlay.Set(&connection.Record{
		Name:        "dev",
		EndpointURL: srv.URL,
		LoginType:   connection.LoginDelegated,
		AccessToken: valid,
	}))
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	session := NewOverlaySession(overlay, auth.NewDispatcher(cfg, overlay, nil))

	info, err := NewClient(srv.Client(), session).WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.UserID)
	assert.Equal(t, "org-1", info.OrganizationID)
	assert.Equal(t, "u@example.com", info.PrincipalName)
}

func TestClientEntityNames(t *testing.T) {
	valid := forgeToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/data/EntityDefinitions/query", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"value":[{"LogicalName":"account"},{"LogicalName":"contact"}]}`)
	}))
	defer srv.Close()

	overlay := connection.NewOverlay(connection.NewFileKV(filepath.Join(t.TempDir(), "session.json")))
	require.NoError(t, overlay.Set(&connection.Record{
		Name:        "dev",
		EndpointURL: srv.URL,
		LoginType:   connection.LoginDelegated,
		AccessToken: valid,
	}))
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	session := NewOverlaySession(overlay, auth.NewDispatcher(cfg, overlay, nil))

	names, err := NewClient(srv.Client(), session).EntityNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"account", "contact"}, names)
}
