package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tonehq/tonectl/pkg/types"
)

// handleInitialize handles the initialize request
func (s *Server) handleInitialize(request types.MCPRequest, writer *bufio.Writer) error {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}

	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			_ = s.sendErrorResponse(writer, request.ID, codeInvalidParams, "Invalid params", err.Error())
			return fmt.Errorf("failed to parse initialize params: %w", err)
		}
	}

	s.mu.Lock()
	s.clientApp = params.ClientInfo.Name
	s.mu.Unlock()

	s.log.Info().
		Str("client_name", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("protocol", params.ProtocolVersion).
		Msg("client connected")

	return s.sendResponse(writer, request.ID, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{
				"listChanged": false,
			},
			"prompts": map[string]interface{}{
				"listChanged": false,
			},
		},
		"serverInfo": map[string]interface{}{
			"name":    "tonectl",
			"version": s.options.Version,
		},
	})
}

// handleInitialized handles the initialized notification
func (s *Server) handleInitialized(request types.MCPRequest) error {
	s.log.Debug().Msg("client initialization complete")
	return nil
}

// handleToolsList handles the tools/list request
func (s *Server) handleToolsList(request types.MCPRequest, writer *bufio.Writer) error {
	return s.sendResponse(writer, request.ID, map[string]interface{}{
		"tools": s.getAvailableTools(),
	})
}

// handleToolCall handles the tools/call request. Tool failures are
// reported in the result with isError set so the model can read them.
func (s *Server) handleToolCall(ctx context.Context, request types.MCPRequest, writer *bufio.Writer) error {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			_ = s.sendErrorResponse(writer, request.ID, codeInvalidParams, "Invalid params", err.Error())
			return fmt.Errorf("failed to parse tool call params: %w", err)
		}
	}
	if len(params.Arguments) == 0 || string(params.Arguments) == "null" {
		params.Arguments = json.RawMessage("{}")
	}

	ctx, cancel := context.WithTimeout(ctx, s.options.Timeout)
	defer cancel()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if _, unknown := err.(unknownToolError); unknown {
			_ = s.sendErrorResponse(writer, request.ID, codeToolFailed, err.Error(), nil)
			return err
		}
		_ = s.sendResponse(writer, request.ID, toolResult(map[string]interface{}{"error": err.Error()}, true))
		return err
	}

	return s.sendResponse(writer, request.ID, toolResult(result, false))
}

// toolResult wraps a tool's answer as MCP text content
func toolResult(v interface{}, isError bool) map[string]interface{} {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		text = []byte(fmt.Sprintf("%v", v))
	}
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(text)},
		},
		"isError": isError,
	}
}
