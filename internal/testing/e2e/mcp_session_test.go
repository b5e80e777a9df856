package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/auth"
	"github.com/tonehq/tonectl/internal/mcp"
	"github.com/tonehq/tonectl/internal/storage"
	"github.com/tonehq/tonectl/internal/testing/mock"
)

// TestHarness drives a live MCP session over pipes. The server reads the
// session a real login stored in a file-backed jar.
type TestHarness struct {
	backend *mock.Backend
	store   *storage.FileStore
	audit   *audit.Logger

	in      *io.PipeWriter
	out     *bufio.Scanner
	nextID  int
	cancel  context.CancelFunc
	stopped chan error
}

func NewTestHarness(t *testing.T, autoApprove bool) *TestHarness {
	t.Helper()

	backend := mock.NewBackend()
	t.Cleanup(backend.Close)

	dir := t.TempDir()
	store, err := storage.NewSealedFileStore(dir, "e2e passphrase value")
	require.NoError(t, err)
	jar := storage.NewJar(store, "e2e")

	client := api.New(api.WithBaseURL(backend.URL()), api.WithCredentials(jar))
	_, err = auth.NewService(client, jar).Login(context.Background(), "owner@example.com", "Passw0rd!")
	require.NoError(t, err)

	auditLog, err := audit.NewLogger(audit.Config{FilePath: filepath.Join(dir, "audit.log")})
	require.NoError(t, err)

	server := mcp.NewServer(client, auditLog, &mcp.ServerOptions{
		AutoApprove: autoApprove,
		Timeout:     5 * time.Second,
		ProfileName: "e2e",
		RateLimit:   100,
		Version:     "e2e",
	})

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	h := &TestHarness{
		backend: backend,
		store:   store,
		audit:   auditLog,
		in:      inW,
		out:     bufio.NewScanner(outR),
		cancel:  cancel,
		stopped: make(chan error, 1),
	}
	h.out.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	go func() {
		err := server.Serve(ctx, inR, outW)
		_ = outW.Close()
		h.stopped <- err
	}()

	t.Cleanup(func() {
		_ = inW.Close()
		cancel()
		<-h.stopped
		server.Close()
		_ = auditLog.Close()
		_ = store.Close()
	})
	return h
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendRequest writes one request and reads its response
func (h *TestHarness) SendRequest(method string, params interface{}) (*rpcResponse, error) {
	h.nextID++
	data, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      h.nextID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	if _, err := h.in.Write(append(data, '\n')); err != nil {
		return nil, err
	}

	lines := make(chan []byte, 1)
	go func() {
		if h.out.Scan() {
			lines <- append([]byte(nil), h.out.Bytes()...)
		}
		close(lines)
	}()

	select {
	case line, ok := <-lines:
		if !ok {
			return nil, fmt.Errorf("server closed the stream")
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("request timeout")
	}
}

// CallTool calls a tool and decodes its text content
func (h *TestHarness) CallTool(t *testing.T, name string, args map[string]interface{}) (map[string]interface{}, bool) {
	t.Helper()
	resp, err := h.SendRequest("tools/call", map[string]interface{}{"name": name, "arguments": args})
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Content, 1)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	return out, result.IsError
}

func TestSession_Handshake(t *testing.T) {
	h := NewTestHarness(t, false)

	resp, err := h.SendRequest("initialize", map[string]interface{}{
		"protocolVersion": mcp.ProtocolVersion,
		"clientInfo":      map[string]string{"name": "e2e-client", "version": "1.0"},
	})
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), `"name":"tonectl"`)

	resp, err = h.SendRequest("tools/list", nil)
	require.NoError(t, err)
	var tools struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &tools))
	assert.Len(t, tools.Tools, 10)

	health, isErr := h.CallTool(t, "health_check", nil)
	assert.False(t, isErr)
	assert.Equal(t, "healthy", health["status"])
}

func TestSession_AgentWorkflow(t *testing.T) {
	h := NewTestHarness(t, false)

	created, isErr := h.CallTool(t, "create_agent", map[string]interface{}{
		"agent_type": "inbound",
		"set": map[string]interface{}{
			"name":              "After Hours",
			"custom_vocabulary": []string{"ToneHQ"},
			"patience_level":    "high",
		},
	})
	require.False(t, isErr, created)
	assert.Equal(t, "created", created["status"])
	id := created["agent_id"]

	updated, isErr := h.CallTool(t, "update_agent", map[string]interface{}{
		"agent_id":       id,
		"add_vocabulary": []string{"Pipecat"},
	})
	require.False(t, isErr, updated)

	got, isErr := h.CallTool(t, "get_agent", map[string]interface{}{"agent_id": id})
	require.False(t, isErr, got)
	form := got["form"].(map[string]interface{})
	assert.Equal(t, "After Hours", form["name"])
	assert.Equal(t, []interface{}{"ToneHQ", "Pipecat"}, form["customVocabulary"])
	assert.Equal(t, "high", form["patienceLevel"])

	listed, _ := h.CallTool(t, "list_agents", map[string]interface{}{"agent_type": "inbound"})
	assert.EqualValues(t, 2, listed["count"])

	pending, isErr := h.CallTool(t, "delete_agent", map[string]interface{}{"agent_id": id})
	require.False(t, isErr)
	assert.Equal(t, "confirmation_required", pending["status"])
	assert.Equal(t, 2, h.backend.AgentCount())

	deleted, isErr := h.CallTool(t, "delete_agent", map[string]interface{}{"agent_id": id, "confirm": true})
	require.False(t, isErr, deleted)
	assert.Equal(t, "deleted", deleted["status"])
	assert.Equal(t, 1, h.backend.AgentCount())

	missing, isErr := h.CallTool(t, "get_agent", map[string]interface{}{"agent_id": id})
	assert.True(t, isErr)
	assert.Contains(t, missing["error"], "not found")
}

func TestSession_AutoApproveDeletes(t *testing.T) {
	h := NewTestHarness(t, true)

	deleted, isErr := h.CallTool(t, "delete_agent", map[string]interface{}{"agent_id": 1})
	require.False(t, isErr, deleted)
	assert.Equal(t, "deleted", deleted["status"])
	assert.Zero(t, h.backend.AgentCount())
}

func TestSession_ExpiredLoginSurfacesAsToolError(t *testing.T) {
	h := NewTestHarness(t, false)
	h.backend.Fail("/agent/get_all_agents", 401, "Could not validate credentials")

	out, isErr := h.CallTool(t, "list_agents", nil)
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "failed to list agents")

	health, _ := h.CallTool(t, "health_check", nil)
	assert.Equal(t, "unhealthy", health["status"])
}
