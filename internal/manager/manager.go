package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/envlink/envlink/internal/auth"
	"github.com/envlink/envlink/internal/connection"
	log "github.com/sirupsen/logrus"
)

// ErrMissingInput is returned when a required wizard field was not supplied.
// The flow aborts before any persistence or network call.
var ErrMissingInput = errors.New("required input missing")

// Manager composes the registry, overlay and dispatcher into the full
// connection lifecycle.
type Manager struct {
	registry   *connection.Registry
	overlay    *connection.Overlay
	dispatcher *auth.Dispatcher
	prompter   Prompter
	notifier   *Notifier
}

// New builds a manager. notifier may be nil when no downstream consumers
// care about refresh events.
func New(registry *connection.Registry, overlay *connection.Overlay, dispatcher *auth.Dispatcher, prompter Prompter, notifier *Notifier) *Manager {
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Manager{
		registry:   registry,
		overlay:    overlay,
		dispatcher: dispatcher,
		prompter:   prompter,
		notifier:   notifier,
	}
}

// Notifier exposes the event fan-out for downstream subscribers.
func (m *Manager) Notifier() *Notifier {
	return m.notifier
}

// CreateConnection runs the creation wizard: collect inputs, persist the
// draft to the registry, authenticate, then publish the record as the active
// connection.
//
// The draft is written to the registry before authentication runs. A failed
// first login therefore leaves the (unauthenticated) record in the registry
// while the overlay stays untouched; reconnecting later repairs it.
func (m *Manager) CreateConnection(ctx context.Context) (*connection.Record, error) {
	endpoint, err := m.prompter.GetString("Environment URL")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("%w: environment URL is required", ErrMissingInput)
	}

	loginType, err := m.promptLoginType()
	if err != nil {
		return nil, err
	}

	rec := &connection.Record{
		EndpointURL: strings.TrimRight(endpoint, "/"),
		LoginType:   loginType,
	}
	if err = m.promptCredentials(rec); err != nil {
		return nil, err
	}

	name, err := m.prompter.GetString("Connection name")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: connection name is required", ErrMissingInput)
	}
	if connection.IsReservedName(name) {
		return nil, fmt.Errorf("%w: %s", connection.ErrReservedName, name)
	}
	rec.Name = name

	if kind, errKind := m.prompter.GetString("Environment kind (optional)"); errKind == nil && kind != "" {
		rec.EnvironmentKind = kind
	}

	if err = m.registry.Create(rec); err != nil {
		return nil, err
	}

	token, err := m.dispatcher.Authenticate(ctx, rec.LoginType, auth.CredentialsFromRecord(rec))
	if err != nil {
		// The record stays in the registry; the overlay is left as it was so
		// no false "connected" state appears.
		return nil, err
	}

	m.applyToken(rec, token)
	if err = m.registry.Update(rec); err != nil {
		log.Warnf("failed to persist tokens for %q to the registry: %v", rec.Name, err)
	}
	if err = m.overlay.Set(rec); err != nil {
		return nil, fmt.Errorf("failed to activate connection %q: %w", rec.Name, err)
	}

	m.publishRefresh()
	log.Infof("Connected to %s as %q", rec.EndpointURL, rec.Name)
	return rec, nil
}

// Connect re-establishes an existing named connection with a fresh full
// authentication, updates its tokens, and makes it the active connection.
func (m *Manager) Connect(ctx context.Context, name string) (*connection.Record, error) {
	rec, err := connection.Resolve(m.overlay, m.registry, name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("connection %q not found", name)
	}

	token, err := m.dispatcher.Authenticate(ctx, rec.LoginType, auth.CredentialsFromRecord(rec))
	if err != nil {
		return nil, err
	}

	m.applyToken(rec, token)
	if err = m.registry.Update(rec); err != nil {
		log.Warnf("failed to persist tokens for %q to the registry: %v", rec.Name, err)
	}
	if err = m.overlay.Set(rec); err != nil {
		return nil, fmt.Errorf("failed to activate connection %q: %w", rec.Name, err)
	}

	m.publishRefresh()
	log.Infof("Reconnected to %s as %q", rec.EndpointURL, rec.Name)
	return rec, nil
}

// Reauthenticate refreshes the named connection's tokens using the
// refresh-then-fallback protocol, without a user-initiated full login.
func (m *Manager) Reauthenticate(ctx context.Context, name string) (*connection.Record, error) {
	rec, err := connection.Resolve(m.overlay, m.registry, name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("connection %q not found", name)
	}
	if _, err = m.dispatcher.Reauthenticate(ctx, rec); err != nil {
		return nil, err
	}
	if err = m.registry.Update(rec); err != nil {
		log.Warnf("failed to persist tokens for %q to the registry: %v", rec.Name, err)
	}
	return rec, nil
}

// Forget clears the active connection. The registry is never touched; an
// empty overlay makes this a no-op.
func (m *Manager) Forget() error {
	rec, err := m.overlay.Get()
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if err = m.overlay.Clear(); err != nil {
		return err
	}
	log.Infof("Forgot active connection %q", rec.Name)
	return nil
}

// ListConnections returns all registry records in insertion order.
func (m *Manager) ListConnections() ([]*connection.Record, error) {
	return m.registry.List()
}

// CurrentConnection returns the active connection, or nil when none is set.
func (m *Manager) CurrentConnection() (*connection.Record, error) {
	return m.overlay.Get()
}

// DeleteConnection removes one named connection behind the confirmation gate.
func (m *Manager) DeleteConnection(name string) error {
	return m.registry.DeleteOne(name, m.prompter.Confirm)
}

// DeleteAllConnections removes every connection behind the confirmation gate.
func (m *Manager) DeleteAllConnections() error {
	return m.registry.DeleteAll(m.prompter.Confirm)
}

// DeleteConnectionConfirmed removes one named connection using the supplied
// confirmation gate instead of the interactive prompter.
func (m *Manager) DeleteConnectionConfirmed(name string, confirm connection.ConfirmFunc) error {
	return m.registry.DeleteOne(name, confirm)
}

// DeleteAllConnectionsConfirmed removes every connection using the supplied
// confirmation gate instead of the interactive prompter.
func (m *Manager) DeleteAllConnectionsConfirmed(confirm connection.ConfirmFunc) error {
	return m.registry.DeleteAll(confirm)
}

// promptLoginType collects the scheme selection, defaulting to delegated
// login when the user supplies nothing usable.
func (m *Manager) promptLoginType() (connection.LoginType, error) {
	options := make([]string, 0, 4)
	for _, t := range connection.LoginTypes() {
		options = append(options, string(t))
	}
	choice, err := m.prompter.GetChoice("Login type", options)
	if err != nil {
		return "", err
	}
	loginType, errParse := connection.ParseLoginType(choice)
	if errParse != nil {
		return connection.LoginDelegated, nil
	}
	return loginType, nil
}

// promptCredentials collects the scheme-specific fields. A missing required
// field aborts the wizard with a scheme-specific error; no partial record is
// created.
func (m *Manager) promptCredentials(rec *connection.Record) error {
	switch rec.LoginType {
	case connection.LoginPassword:
		username, err := m.prompter.GetString("Username")
		if err != nil {
			return err
		}
		if username == "" {
			return fmt.Errorf("%w: username is required for password login", ErrMissingInput)
		}
		password, err := m.prompter.GetSecret("Password")
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("%w: password is required for password login", ErrMissingInput)
		}
		rec.Principal = username
		rec.Secret = password
	case connection.LoginClientCredential:
		clientID, err := m.prompter.GetString("Client ID")
		if err != nil {
			return err
		}
		if clientID == "" {
			return fmt.Errorf("%w: client id is required for client-credential login", ErrMissingInput)
		}
		clientSecret, err := m.prompter.GetSecret("Client secret")
		if err != nil {
			return err
		}
		if clientSecret == "" {
			return fmt.Errorf("%w: client secret is required for client-credential login", ErrMissingInput)
		}
		tenantID, err := m.prompter.GetString("Tenant ID")
		if err != nil {
			return err
		}
		if tenantID == "" {
			return fmt.Errorf("%w: tenant id is required for client-credential login", ErrMissingInput)
		}
		rec.Principal = clientID
		rec.Secret = clientSecret
		rec.TenantID = tenantID
	case connection.LoginInteractiveBrowser, connection.LoginDelegated:
		// No stored credentials for these schemes.
	}
	return nil
}

// applyToken overwrites the record's token fields together and derives the
// user principal from the access token claims when possible.
func (m *Manager) applyToken(rec *connection.Record, token *auth.TokenResponse) {
	rec.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		rec.RefreshToken = token.RefreshToken
	}
	if claims, err := auth.ParseClaims(token.AccessToken); err == nil {
		if principal := claims.UserPrincipal(); principal != "" {
			rec.UserPrincipalName = principal
		}
	}
}

func (m *Manager) publishRefresh() {
	m.notifier.Publish(EventEntityMetadataChanged)
	m.notifier.Publish(EventWebResourcesChanged)
}
