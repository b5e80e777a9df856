package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/testing/mock"
)

func TestServer_RejectsHostileArguments(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    map[string]interface{}
		wantErr string
	}{
		{"string id", "get_agent", map[string]interface{}{"agent_id": "1 OR 1=1"}, "invalid parameters"},
		{"negative id", "get_agent", map[string]interface{}{"agent_id": -5}, "positive integer"},
		{"zero id on delete", "delete_agent", map[string]interface{}{"agent_id": 0, "confirm": true}, "positive integer"},
		{"path as agent type", "create_agent", map[string]interface{}{"agent_type": "../../etc/passwd"}, ""},
		{"injected list filter", "list_agents", map[string]interface{}{"agent_type": "inbound'; --"}, ""},
		{"object value", "update_agent", map[string]interface{}{
			"agent_id": 1,
			"set":      map[string]interface{}{"name": map[string]interface{}{"$ne": ""}},
		}, "expected text"},
		{"non-string list item", "update_agent", map[string]interface{}{
			"agent_id": 1,
			"set":      map[string]interface{}{"custom_vocabulary": []interface{}{1, 2}},
		}, "list items must be strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, backend := newTestServer(t, nil)

			responses := serve(t, s, callTool(1, tt.tool, tt.args))
			require.Len(t, responses, 1)

			out, isErr := toolOutput(t, responses[0])
			assert.True(t, isErr)
			if tt.wantErr != "" {
				assert.Contains(t, out["error"], tt.wantErr)
			}

			assert.Equal(t, 0, backend.CallCount("/agent/upsert_agent"))
			assert.Equal(t, 0, backend.CallCount("/agent/delete_agent"))
			assert.Equal(t, 1, backend.AgentCount())
		})
	}
}

func TestServer_NoSession(t *testing.T) {
	backend := mock.NewBackend()
	t.Cleanup(backend.Close)

	client := api.New(api.WithBaseURL(backend.URL()), api.WithCredentials(api.StaticCredentials{}))
	s := NewServer(client, nil, &ServerOptions{Timeout: 5 * time.Second, RateLimit: 100})
	t.Cleanup(s.Close)

	responses := serve(t, s,
		callTool(1, "list_agents", map[string]interface{}{}),
		callTool(2, "health_check", map[string]interface{}{}),
	)
	require.Len(t, responses, 2)

	out, isErr := toolOutput(t, responses[0])
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "Not authenticated")

	health, isErr := toolOutput(t, responses[1])
	assert.False(t, isErr)
	assert.Equal(t, "unhealthy", health["status"])
}
