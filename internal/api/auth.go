package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tonehq/tonectl/pkg/types"
)

// FlexibleID decodes an identifier sent either as a JSON number or string
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = FlexibleID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", s)
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string { return string(f) }

// LoginResponse is returned by login and by both Firebase exchanges
type LoginResponse struct {
	AccessToken   string               `json:"access_token"`
	TokenType     string               `json:"token_type,omitempty"`
	UserID        FlexibleID           `json:"user_id"`
	Email         string               `json:"email,omitempty"`
	Organizations []types.Organization `json:"organizations"`

	// Raw is the payload exactly as received
	Raw json.RawMessage `json:"-"`
}

// SignupRequest is the password signup body
type SignupRequest struct {
	Email    string                 `json:"email"`
	Username string                 `json:"username"`
	Password string                 `json:"password"`
	Profile  map[string]interface{} `json:"profile"`
	OrgName  *string                `json:"org_name"`
}

// SignupResponse is the password signup answer
type SignupResponse struct {
	Message string     `json:"message,omitempty"`
	UserID  FlexibleID `json:"user_id,omitempty"`
}

// OrganizationCheck is the answer of the organization-existence endpoint
type OrganizationCheck struct {
	Exists       bool                `json:"exists"`
	Organization *types.Organization `json:"organization,omitempty"`
}

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	return c.loginLike(ctx, request{method: http.MethodPost, path: "/auth/login", body: body, skipAuth: true})
}

// AccessTokenByFirebase exchanges a Firebase id token for an app token.
// Unknown users are rejected with detail USER_NOT_FOUND.
func (c *Client) AccessTokenByFirebase(ctx context.Context, idToken string) (*LoginResponse, error) {
	return c.loginLike(ctx, request{
		method: http.MethodGet,
		path:   "/auth/get_app_access_token_by_firebase",
		bearer: idToken,
	})
}

// SignupWithFirebase registers a user already authenticated by Firebase
func (c *Client) SignupWithFirebase(ctx context.Context, idToken, email string, profile map[string]interface{}) (*LoginResponse, error) {
	body := map[string]interface{}{"email": email, "profile": profile}
	return c.loginLike(ctx, request{
		method: http.MethodPost,
		path:   "/auth/signup_with_firebase",
		body:   body,
		bearer: idToken,
	})
}

func (c *Client) loginLike(ctx context.Context, req request) (*LoginResponse, error) {
	var raw json.RawMessage
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("login response carries no access token")
	}
	resp.Raw = raw
	return &resp, nil
}

// Signup registers a user with a password
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	if req.Profile == nil {
		req.Profile = map[string]interface{}{}
	}
	var resp SignupResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/signup", body: req, skipAuth: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckOrganizationExists looks up an organization by display name
func (c *Client) CheckOrganizationExists(ctx context.Context, name string) (*OrganizationCheck, error) {
	var resp OrganizationCheck
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/auth/check_organization_exists",
		query:    url.Values{"name": {strings.TrimSpace(name)}},
		skipAuth: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Exists {
		resp.Organization = nil
	}
	return &resp, nil
}
