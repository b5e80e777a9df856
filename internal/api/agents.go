package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tonehq/tonectl/internal/agentform"
)

// UpsertResult is the backend's answer to an upsert
type UpsertResult struct {
	ID      int64  `json:"id"`
	Message string `json:"message,omitempty"`
}

// ListAgents returns every agent visible to the current tenant
func (c *Client) ListAgents(ctx context.Context) ([]agentform.APIAgent, error) {
	return c.listAgents(ctx, nil)
}

// GetAgent fetches one agent. A missing agent is (nil, nil).
func (c *Client) GetAgent(ctx context.Context, id int64) (*agentform.APIAgent, error) {
	agents, err := c.listAgents(ctx, url.Values{"agent_id": {strconv.FormatInt(id, 10)}})
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, nil
	}
	return &agents[0], nil
}

func (c *Client) listAgents(ctx context.Context, query url.Values) ([]agentform.APIAgent, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, path: "/agent/get_all_agents", query: query}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[agentform.APIAgent](raw)
}

// UpsertAgent creates the agent when payload carries no id, updates it otherwise
func (c *Client) UpsertAgent(ctx context.Context, payload agentform.UpsertPayload) (*UpsertResult, error) {
	var result UpsertResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/agent/upsert_agent", body: payload}, &result); err != nil {
		return nil, err
	}
	if result.ID == 0 && payload.ID != nil {
		result.ID = *payload.ID
	}
	return &result, nil
}

// DeleteAgent removes an agent
func (c *Client) DeleteAgent(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/agent/delete_agent",
		query:  url.Values{"agent_id": {strconv.FormatInt(id, 10)}},
	}, nil)
}

// decodeList accepts a bare JSON array, an object wrapping it under "data",
// or null
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode list response: %w", err)
		}
		return decodeList[T](wrapped.Data)
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return items, nil
}
