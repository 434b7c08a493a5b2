// Package auth implements the authentication strategies for the four
// supported login schemes, plus the dispatcher that selects between them and
// runs the refresh-then-fallback reauthentication protocol.
package auth

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// TokenResponse is the result of any successful authentication or refresh
// exchange. AccessToken is always populated; RefreshToken is per-scheme
// optional.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// parseTokenResponse decodes a standard OAuth token response body. A body
// without an access token is an error; no partially-populated response is
// ever returned.
func parseTokenResponse(body []byte) (*TokenResponse, error) {
	accessToken := gjson.GetBytes(body, "access_token")
	if !accessToken.Exists() || accessToken.String() == "" {
		if errType := gjson.GetBytes(body, "error"); errType.Exists() {
			return nil, fmt.Errorf("token endpoint error: %s - %s", errType.String(), gjson.GetBytes(body, "error_description").String())
		}
		return nil, fmt.Errorf("token response missing access_token")
	}
	resp := &TokenResponse{
		AccessToken:  accessToken.String(),
		RefreshToken: gjson.GetBytes(body, "refresh_token").String(),
		TokenType:    gjson.GetBytes(body, "token_type").String(),
	}
	if expiresIn := gjson.GetBytes(body, "expires_in"); expiresIn.Exists() {
		resp.ExpiresAt = time.Now().Add(time.Duration(expiresIn.Int()) * time.Second)
	}
	return resp, nil
}
