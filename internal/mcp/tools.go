package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/pkg/types"
)

type unknownToolError string

func (e unknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", string(e))
}

var agentIDProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Agent ID",
	"minimum":     1,
}

var setProperty = map[string]interface{}{
	"type":        "object",
	"description": "Fields to change, keyed by backend name (name, description, first_message, end_call_message, system_prompt, language, voice_speed, patience_level, speech_recognition, custom_vocabulary, filter_words, realistic_filler_words, call_recording, call_transcription, llm_service_id, tts_service_id, stt_service_id)",
	"additionalProperties": map[string]interface{}{
		"type": []string{"string", "number", "boolean", "null"},
	},
}

// getAvailableTools returns the list of available MCP tools
func (s *Server) getAvailableTools() []types.MCPTool {
	return []types.MCPTool{
		{
			Name:        "list_agents",
			Description: "List voice agents in the current organization",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"inbound", "outbound"},
						"description": "Only list agents of this type",
					},
				},
			},
		},
		{
			Name:        "get_agent",
			Description: "Get an agent's full configuration as the edit form sees it",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent_id": agentIDProperty,
				},
				"required": []string{"agent_id"},
			},
		},
		{
			Name:        "create_agent",
			Description: "Create an agent from the defaults of its type plus the given fields",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent_type": map[string]interface{}{
						"type": "string",
						"enum": []string{"inbound", "outbound"},
					},
					"set": setProperty,
				},
				"required": []string{"agent_type"},
			},
		},
		{
			Name:        "update_agent",
			Description: "Change fields of an existing agent",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent_id": agentIDProperty,
					"set":      setProperty,
					"add_vocabulary": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Words appended to the custom vocabulary",
					},
					"add_filter_words": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Words appended to the filter list",
					},
				},
				"required": []string{"agent_id"},
			},
		},
		{
			Name:        "delete_agent",
			Description: "Delete an agent. Requires confirm=true unless the server auto-approves.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent_id": agentIDProperty,
					"confirm": map[string]interface{}{
						"type":        "boolean",
						"description": "Set after the user agreed to the deletion",
					},
				},
				"required": []string{"agent_id"},
			},
		},
		{
			Name:        "check_organization",
			Description: "Check whether an organization name is already taken",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Organization name",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "get_organization_settings",
			Description: "Show whether the organization accepts access requests and auto-verifies same-domain users",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "list_channels",
			Description: "List the organization's Twilio channels. Auth tokens are masked.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "list_phone_numbers",
			Description: "List the Twilio numbers that can be assigned to agents",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"channel_id": map[string]interface{}{
						"type":        "integer",
						"description": "Channel whose credentials to use; defaults to the organization's",
						"minimum":     1,
					},
				},
			},
		},
		{
			Name:        "health_check",
			Description: "Check the health status of the MCP server",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// executeTool executes a tool with the given arguments
func (s *Server) executeTool(ctx context.Context, toolName string, args json.RawMessage) (interface{}, error) {
	s.logger.LogSystem(audit.EventAgentAccess, "Tool called", map[string]interface{}{
		"tool":    toolName,
		"profile": s.options.ProfileName,
	})

	switch toolName {
	case "list_agents":
		return s.executeListAgents(ctx, args)
	case "get_agent":
		return s.executeGetAgent(ctx, args)
	case "create_agent":
		return s.executeCreateAgent(ctx, args)
	case "update_agent":
		return s.executeUpdateAgent(ctx, args)
	case "delete_agent":
		return s.executeDeleteAgent(ctx, args)
	case "check_organization":
		return s.executeCheckOrganization(ctx, args)
	case "get_organization_settings":
		return s.executeGetOrganizationSettings(ctx)
	case "list_channels":
		return s.executeListChannels(ctx)
	case "list_phone_numbers":
		return s.executeListPhoneNumbers(ctx, args)
	case "health_check":
		return s.handleHealthCheck(ctx)
	default:
		return nil, unknownToolError(toolName)
	}
}
