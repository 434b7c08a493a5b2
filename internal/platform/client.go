package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// UserInfo is the identity the platform reports for the current session.
type UserInfo struct {
	UserID         string
	OrganizationID string
	PrincipalName  string
}

// Client issues authenticated data requests against the connected
// environment.
type Client struct {
	httpClient *http.Client
	session    Session
}

// NewClient builds a data client over the given session.
func NewClient(httpClient *http.Client, session Session) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, session: session}
}

// WhoAmI asks the platform who the cached token belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*UserInfo, error) {
	body, err := c.do(ctx, "GET", "/api/data/WhoAmI", nil)
	if err != nil {
		return nil, err
	}
	return &UserInfo{
		UserID:         gjson.GetBytes(body, "UserId").String(),
		OrganizationID: gjson.GetBytes(body, "OrganizationId").String(),
		PrincipalName:  gjson.GetBytes(body, "UserPrincipalName").String(),
	}, nil
}

// EntityNames lists the logical names of the environment's entities, used by
// consumers refreshing metadata listings.
func (c *Client) EntityNames(ctx context.Context) ([]string, error) {
	payload, err := sjson.Set("{}", "select", []string{"LogicalName"})
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}
	payload, err = sjson.Set(payload, "top", 500)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}

	body, err := c.do(ctx, "POST", "/api/data/EntityDefinitions/query", []byte(payload))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0)
	gjson.GetBytes(body, "value.#.LogicalName").ForEach(func(_, value gjson.Result) bool {
		names = append(names, value.String())
		return true
	})
	return names, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	endpoint, err := c.session.Endpoint()
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(endpoint, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}
