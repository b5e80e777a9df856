package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// APIKey is a key generated for calling the platform programmatically
type APIKey struct {
	ID              int64           `json:"id" yaml:"id"`
	UUID            string          `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Name            string          `json:"name" yaml:"name"`
	KeyValue        string          `json:"key_value" yaml:"key_value"`
	Domains         json.RawMessage `json:"domains,omitempty" yaml:"-"`
	FraudProtection *bool           `json:"fraud_protection,omitempty" yaml:"fraud_protection,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Redacted returns a copy with the key value masked
func (k APIKey) Redacted() APIKey {
	out := k
	out.KeyValue = MaskSecret(k.KeyValue)
	return out
}

// ListAPIKeys returns the organization's generated API keys
func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/generated-api-keys/list"}, &raw); err != nil {
		return nil, err
	}
	return decodeList[APIKey](raw)
}
