package types

import (
	"encoding/json"
	"time"
)

// Cookie names written by a successful login. They mirror the names the web
// console stores in the browser so a jar can be inspected side by side.
const (
	CookieAccessToken = "tone_access_token"
	CookieTenantID    = "org_tenant_id"
	CookieLoginData   = "login_data"
	CookieUserID      = "user_id"
)

// SessionCookies lists every cookie owned by a login, in write order.
var SessionCookies = []string{CookieAccessToken, CookieTenantID, CookieLoginData, CookieUserID}

// Cookie is one persisted session value with its expiry
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

// Expired reports whether the cookie is no longer valid at now.
// A zero expiry never expires.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// Session is the full cookie set of one profile
type Session struct {
	Profile   string            `json:"profile"`
	Cookies   map[string]Cookie `json:"cookies"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SessionMetadata represents metadata about a stored session
type SessionMetadata struct {
	Profile   string    `json:"profile"`
	Cookies   int       `json:"cookies"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization is the organization summary returned by the backend
type Organization struct {
	ID                  int64  `json:"id" yaml:"id"`
	Name                string `json:"name" yaml:"name"`
	Slug                string `json:"slug" yaml:"slug"`
	Role                string `json:"role,omitempty" yaml:"role,omitempty"`
	AllowAccessRequests bool   `json:"allow_access_requests" yaml:"allow_access_requests"`
}

// Confirmation represents user confirmation settings
type Confirmation struct {
	BatchMode   bool          `json:"batch_mode"`
	AutoApprove bool          `json:"auto_approve"`
	Timeout     time.Duration `json:"timeout"`
	DefaultDeny bool          `json:"default_deny"`
}

// Notification levels used by the console and recorded in tests
type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyInfo    NotificationLevel = "info"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a short user-visible message: a title plus detail
type Notification struct {
	Level  NotificationLevel `json:"level"`
	Title  string            `json:"title"`
	Detail string            `json:"detail"`
}

// MCPRequest represents an MCP protocol request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an MCP protocol response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPTool represents an MCP tool definition
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}
