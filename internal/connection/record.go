// Package connection holds the connection record model and its two backing
// stores: the durable multi-connection registry and the session-scoped
// active connection overlay.
package connection

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNameConflict is returned when creating a connection whose name is
	// already present in the registry.
	ErrNameConflict = errors.New("a connection with this name already exists")

	// ErrReservedName is returned when a connection name collides with an
	// internal storage key.
	ErrReservedName = errors.New("connection name is reserved")

	// ErrDeclined is returned when the confirmation gate rejects a delete.
	ErrDeclined = errors.New("operation declined")
)

// reservedNames are storage keys that must never double as connection names.
var reservedNames = map[string]struct{}{
	"connections":       {},
	"active-connection": {},
}

// IsReservedName reports whether name collides with an internal storage key.
func IsReservedName(name string) bool {
	_, ok := reservedNames[strings.ToLower(name)]
	return ok
}

// Record is one named connection: endpoint, chosen login scheme,
// scheme-dependent credential fields, and cached session tokens.
// Name is unique across the registry and immutable after creation.
type Record struct {
	Name        string    `json:"name"`
	EndpointURL string    `json:"endpoint_url"`
	LoginType   LoginType `json:"login_type"`

	// Principal is the username (password scheme) or client id
	// (client-credential scheme). Absent for delegated logins.
	Principal string `json:"principal,omitempty"`

	// Secret is the password or client secret. Absent for interactive and
	// delegated logins. May hold a keyring placeholder when secrets are
	// stored externally.
	Secret string `json:"secret,omitempty"`

	// TenantID is present only for the client-credential scheme.
	TenantID string `json:"tenant_id,omitempty"`

	// EnvironmentKind is an optional user-supplied classification tag.
	EnvironmentKind string `json:"environment_kind,omitempty"`

	// AccessToken and RefreshToken are mutable and overwritten together on
	// every successful (re)authentication. RefreshToken is only replaced
	// when a new one is issued.
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// UserPrincipalName is derived by decoding access token claims after a
	// successful login, when the token carries a usable claim.
	UserPrincipalName string `json:"user_principal_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks name, endpoint, and that scheme-dependent fields are
// populated as a complete set for the chosen login type.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("connection name is required")
	}
	if IsReservedName(r.Name) {
		return fmt.Errorf("%w: %s", ErrReservedName, r.Name)
	}
	if strings.TrimSpace(r.EndpointURL) == "" {
		return fmt.Errorf("endpoint URL is required")
	}
	switch r.LoginType {
	case LoginPassword:
		if r.Principal == "" || r.Secret == "" {
			return fmt.Errorf("password login requires username and password")
		}
	case LoginClientCredential:
		if r.Principal == "" || r.Secret == "" || r.TenantID == "" {
			return fmt.Errorf("client-credential login requires client id, client secret and tenant id")
		}
	case LoginInteractiveBrowser:
		if r.Secret != "" {
			return fmt.Errorf("interactive login must not carry a secret")
		}
	case LoginDelegated:
		if r.Principal != "" || r.Secret != "" {
			return fmt.Errorf("delegated login must not carry credentials")
		}
	default:
		return fmt.Errorf("unknown login type %q", r.LoginType)
	}
	return nil
}

// Clone returns a copy of the record so callers can mutate it freely.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	copyRec := *r
	return &copyRec
}
