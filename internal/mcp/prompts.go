package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tonehq/tonectl/internal/editor"
	"github.com/tonehq/tonectl/pkg/types"
)

const promptConfirmDelete = "confirm_agent_deletion"

// getAvailablePrompts returns the prompts offered to MCP clients
func (s *Server) getAvailablePrompts() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name":        promptConfirmDelete,
			"description": "Asks the user to approve deleting an agent before delete_agent is called with confirm=true.",
			"arguments": []map[string]interface{}{
				{
					"name":        "agent_id",
					"description": "ID of the agent to delete.",
					"required":    true,
				},
				{
					"name":        "agent_name",
					"description": "Display name of the agent, as returned by delete_agent.",
					"required":    false,
				},
			},
		},
	}
}

// handlePromptsList handles the prompts/list request
func (s *Server) handlePromptsList(request types.MCPRequest, writer *bufio.Writer) error {
	return s.sendResponse(writer, request.ID, map[string]interface{}{
		"prompts": s.getAvailablePrompts(),
	})
}

// handleGetPrompt handles the prompts/get request
func (s *Server) handleGetPrompt(request types.MCPRequest, writer *bufio.Writer) error {
	messages, err := s.buildPrompt(request.Params)
	if err != nil {
		_ = s.sendErrorResponse(writer, request.ID, codeInvalidParams, "Invalid params", err.Error())
		return err
	}
	return s.sendResponse(writer, request.ID, map[string]interface{}{"messages": messages})
}

func (s *Server) buildPrompt(raw json.RawMessage) ([]map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing params for prompts/get")
	}

	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments,omitempty"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("failed to parse prompts/get params: %w", err)
	}

	if params.Name != promptConfirmDelete {
		return nil, fmt.Errorf("unknown prompt requested: %s", params.Name)
	}

	agentID := strings.TrimSpace(params.Arguments["agent_id"])
	if agentID == "" {
		return nil, fmt.Errorf("missing 'agent_id' in prompt arguments")
	}

	target := "agent " + agentID
	if name := strings.TrimSpace(params.Arguments["agent_name"]); name != "" {
		target = fmt.Sprintf("agent '%s' (id %s)", name, agentID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Delete %s?**\n\n%s", target, editor.DeleteConfirmation)
	b.WriteString("\n\nPlease reply 'approve' or 'deny'.")
	b.WriteString("\n(On approval the assistant calls delete_agent with confirm=true.)")

	return []map[string]interface{}{
		{
			"role": "assistant",
			"content": map[string]interface{}{
				"type": "text",
				"text": b.String(),
			},
		},
	}, nil
}
