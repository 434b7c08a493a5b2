package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Claims holds the subset of access token claims envlink reads. Tokens are
// decoded without signature verification; this is identity display and
// expiry bookkeeping only, never authorization.
type Claims struct {
	UPN        string
	Email      string
	UniqueName string
	Exp        int64
}

// ParseClaims decodes the middle (payload) segment of a three-part token
// and extracts the claims envlink cares about.
func ParseClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid token format: expected 3 parts, got %d", len(parts))
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("token claims are not valid JSON")
	}

	return &Claims{
		UPN:        gjson.GetBytes(payload, "upn").String(),
		Email:      gjson.GetBytes(payload, "email").String(),
		UniqueName: gjson.GetBytes(payload, "unique_name").String(),
		Exp:        gjson.GetBytes(payload, "exp").Int(),
	}, nil
}

// base64URLDecode decodes a base64 URL-encoded string with proper padding.
func base64URLDecode(data string) ([]byte, error) {
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	return base64.URLEncoding.DecodeString(data)
}

// UserPrincipal returns the best available user identity claim.
func (c *Claims) UserPrincipal() string {
	if c.UPN != "" {
		return c.UPN
	}
	if c.Email != "" {
		return c.Email
	}
	return c.UniqueName
}

// ExpiresAt returns the token expiry, or the zero time when absent.
func (c *Claims) ExpiresAt() time.Time {
	if c.Exp <= 0 {
		return time.Time{}
	}
	return time.Unix(c.Exp, 0)
}
