package connection

import "fmt"

// LoginType identifies the authentication scheme a connection uses.
type LoginType string

const (
	// LoginPassword exchanges a username and password directly for a token.
	LoginPassword LoginType = "password"

	// LoginClientCredential exchanges app credentials for a tenant-scoped token.
	LoginClientCredential LoginType = "client-credential"

	// LoginInteractiveBrowser runs the browser-based authorization code flow.
	LoginInteractiveBrowser LoginType = "interactive-browser"

	// LoginDelegated draws a token from an already-authenticated host identity.
	LoginDelegated LoginType = "delegated"
)

// LoginTypes returns the closed set of supported schemes in display order.
func LoginTypes() []LoginType {
	return []LoginType{LoginPassword, LoginClientCredential, LoginInteractiveBrowser, LoginDelegated}
}

// Valid reports whether t is one of the supported schemes.
func (t LoginType) Valid() bool {
	switch t {
	case LoginPassword, LoginClientCredential, LoginInteractiveBrowser, LoginDelegated:
		return true
	}
	return false
}

// ParseLoginType maps a user-supplied string onto a LoginType.
func ParseLoginType(s string) (LoginType, error) {
	t := LoginType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown login type %q", s)
	}
	return t, nil
}
