package auth

import (
	"strings"

	"github.com/envlink/envlink/internal/connection"
)

// Credentials are the inputs a strategy consumes. Which fields are read
// depends on the login scheme.
type Credentials struct {
	Endpoint     string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	TenantID     string
}

// CredentialsFromRecord re-derives a strategy's inputs from a stored
// connection record, used by the reauthentication fallback path.
func CredentialsFromRecord(rec *connection.Record) Credentials {
	creds := Credentials{Endpoint: rec.EndpointURL}
	switch rec.LoginType {
	case connection.LoginPassword:
		creds.Username = rec.Principal
		creds.Password = rec.Secret
	case connection.LoginClientCredential:
		creds.ClientID = rec.Principal
		creds.ClientSecret = rec.Secret
		creds.TenantID = rec.TenantID
	}
	return creds
}

// tokenEndpoint derives the token URL from the environment base URL.
func tokenEndpoint(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + "/oauth2/token"
}

// tenantTokenEndpoint derives the tenant-scoped token URL used by the
// client-credential scheme.
func tenantTokenEndpoint(endpoint, tenantID string) string {
	return strings.TrimRight(endpoint, "/") + "/" + tenantID + "/oauth2/token"
}

// authorizeEndpoint derives the interactive authorization URL.
func authorizeEndpoint(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + "/oauth2/authorize"
}

// scopeFor builds the resource scope requested for an environment.
func scopeFor(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + "/.default offline_access"
}
