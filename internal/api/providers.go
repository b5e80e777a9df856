package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Provider kinds a service id can point at
const (
	ProviderLLM = "llm"
	ProviderTTS = "tts"
	ProviderSTT = "stt"
)

// ServiceProvider is an LLM, TTS or STT vendor configured on the backend
type ServiceProvider struct {
	ID           int64           `json:"id"`
	UUID         string          `json:"uuid,omitempty"`
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name"`
	Description  string          `json:"description,omitempty"`
	ProviderType string          `json:"provider_type"`
	Status       string          `json:"status,omitempty"`
	Models       []ProviderModel `json:"models,omitempty"`
}

// ProviderModel is one selectable model of a provider
type ProviderModel struct {
	ID                int64  `json:"id"`
	ServiceProviderID int64  `json:"service_provider_id"`
	Name              string `json:"name"`
}

// ListServiceProviders returns every provider, optionally filtered by kind
func (c *Client) ListServiceProviders(ctx context.Context, kind string) ([]ServiceProvider, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/service-providers/list"}, &raw); err != nil {
		return nil, err
	}
	all, err := decodeList[ServiceProvider](raw)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return all, nil
	}

	filtered := make([]ServiceProvider, 0, len(all))
	for _, p := range all {
		if p.ProviderType == kind {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}
