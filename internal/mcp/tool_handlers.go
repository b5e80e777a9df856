package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tonehq/tonectl/internal/agentform"
	"github.com/tonehq/tonectl/internal/editor"
	"github.com/tonehq/tonectl/internal/ui"
	"github.com/tonehq/tonectl/pkg/types"
)

// decodeArgs unmarshals tool arguments, keeping numbers exact
func decodeArgs(args json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// newEditor opens an editor page for one tool call. Confirmations are
// answered without prompting: stdin belongs to the protocol.
func (s *Server) newEditor(agentType agentform.AgentType, agentID *int64, notes *ui.Recorder) *editor.Editor {
	return editor.New(s.client, agentType, agentID,
		editor.WithNotifier(notes),
		editor.WithConfirmer(ui.NewConfirmer(types.Confirmation{BatchMode: true})),
		editor.WithAudit(s.logger),
		editor.WithLogger(s.options.Logger),
		editor.WithProfile(s.options.ProfileName),
	)
}

// executeListAgents handles the list_agents tool
func (s *Server) executeListAgents(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		AgentType string `json:"agent_type,omitempty"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	var filter agentform.AgentType
	if params.AgentType != "" {
		t, err := agentform.ParseAgentType(params.AgentType)
		if err != nil {
			return nil, err
		}
		filter = t
	}

	agents, err := s.client.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	summaries := make([]map[string]interface{}, 0, len(agents))
	for i := range agents {
		a := &agents[i]
		if filter != "" && !strings.EqualFold(a.AgentType, string(filter)) {
			continue
		}
		summary := map[string]interface{}{
			"id":         a.ID,
			"name":       a.DisplayName(),
			"agent_type": a.AgentType,
		}
		if a.Status != "" {
			summary["status"] = a.Status
		}
		if a.Language != nil {
			summary["language"] = *a.Language
		}
		summaries = append(summaries, summary)
	}

	return map[string]interface{}{
		"agents": summaries,
		"count":  len(summaries),
	}, nil
}

// executeGetAgent handles the get_agent tool
func (s *Server) executeGetAgent(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		AgentID int64 `json:"agent_id"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.AgentID <= 0 {
		return nil, fmt.Errorf("agent_id must be a positive integer")
	}

	notes := &ui.Recorder{}
	e := s.newEditor("", &params.AgentID, notes)
	defer e.Close()

	if err := e.Open(ctx); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"agent_id":   params.AgentID,
		"agent_type": e.AgentType(),
		"form":       e.Form(),
	}, nil
}

// executeCreateAgent handles the create_agent tool
func (s *Server) executeCreateAgent(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		AgentType string                 `json:"agent_type"`
		Set       map[string]interface{} `json:"set,omitempty"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	agentType, err := agentform.ParseAgentType(params.AgentType)
	if err != nil {
		return nil, err
	}
	patch, err := patchFromSet(params.Set)
	if err != nil {
		return nil, err
	}

	notes := &ui.Recorder{}
	e := s.newEditor(agentType, nil, notes)
	defer e.Close()

	if err := e.Open(ctx); err != nil {
		return nil, err
	}
	form := e.Update(patch)

	result, err := e.Save(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":     "created",
		"agent_id":   result.ID,
		"agent_type": agentType,
		"name":       form.Name,
		"message":    lastDetail(notes, editor.MsgCreated),
	}, nil
}

// executeUpdateAgent handles the update_agent tool
func (s *Server) executeUpdateAgent(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		AgentID        int64                  `json:"agent_id"`
		Set            map[string]interface{} `json:"set,omitempty"`
		AddVocabulary  []string               `json:"add_vocabulary,omitempty"`
		AddFilterWords []string               `json:"add_filter_words,omitempty"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.AgentID <= 0 {
		return nil, fmt.Errorf("agent_id must be a positive integer")
	}

	patch, err := patchFromSet(params.Set)
	if err != nil {
		return nil, err
	}

	notes := &ui.Recorder{}
	e := s.newEditor("", &params.AgentID, notes)
	defer e.Close()

	if err := e.Open(ctx); err != nil {
		return nil, err
	}

	form := e.Update(patch)
	if len(params.AddVocabulary) > 0 {
		form = e.Update(agentform.AddVocabulary(form, params.AddVocabulary...))
	}
	if len(params.AddFilterWords) > 0 {
		form = e.Update(agentform.AddFilterWords(form, params.AddFilterWords...))
	}

	if _, err := e.Save(ctx); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":   "updated",
		"agent_id": params.AgentID,
		"form":     form,
		"message":  lastDetail(notes, editor.MsgSaved),
	}, nil
}

// executeDeleteAgent handles the delete_agent tool
func (s *Server) executeDeleteAgent(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		AgentID int64 `json:"agent_id"`
		Confirm bool  `json:"confirm,omitempty"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.AgentID <= 0 {
		return nil, fmt.Errorf("agent_id must be a positive integer")
	}

	notes := &ui.Recorder{}
	e := s.newEditor("", &params.AgentID, notes)
	defer e.Close()

	if err := e.Open(ctx); err != nil {
		return nil, err
	}
	name := e.Form().Name

	if !params.Confirm && !s.options.AutoApprove {
		s.log.Info().Int64("agent_id", params.AgentID).Msg("delete awaiting confirmation")
		return map[string]interface{}{
			"status":   "confirmation_required",
			"agent_id": params.AgentID,
			"name":     name,
			"message":  editor.DeleteConfirmation + " Call delete_agent again with confirm=true once the user agrees.",
		}, nil
	}

	if err := e.Delete(ctx); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":   "deleted",
		"agent_id": params.AgentID,
		"name":     name,
	}, nil
}

// executeCheckOrganization handles the check_organization tool
func (s *Server) executeCheckOrganization(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	org, err := s.orgs.Check(ctx, params.Name)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"name":   strings.TrimSpace(params.Name),
		"exists": org != nil,
	}
	if org != nil {
		result["organization"] = org
	}
	return result, nil
}

// executeGetOrganizationSettings handles the get_organization_settings tool
func (s *Server) executeGetOrganizationSettings(ctx context.Context) (interface{}, error) {
	settings, err := s.client.GetOrganizationSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization settings: %w", err)
	}
	return settings, nil
}

// executeListChannels handles the list_channels tool
func (s *Server) executeListChannels(ctx context.Context) (interface{}, error) {
	channels, err := s.client.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	for i := range channels {
		channels[i] = channels[i].Redacted()
	}
	return map[string]interface{}{
		"channels": channels,
		"count":    len(channels),
	}, nil
}

// executeListPhoneNumbers handles the list_phone_numbers tool
func (s *Server) executeListPhoneNumbers(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		ChannelID *int64 `json:"channel_id,omitempty"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.ChannelID != nil && *params.ChannelID <= 0 {
		return nil, fmt.Errorf("channel_id must be a positive integer")
	}

	numbers, err := s.client.ListTwilioNumbers(ctx, "twilio", params.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone numbers: %w", err)
	}
	return map[string]interface{}{
		"phone_numbers": numbers,
		"count":         len(numbers),
	}, nil
}

// patchFromSet turns a JSON object of field values into one Patch
func patchFromSet(set map[string]interface{}) (agentform.Patch, error) {
	patch, err := agentform.PatchFromValues(set)
	if err != nil {
		return agentform.Patch{}, fmt.Errorf("invalid set: %w", err)
	}
	return patch, nil
}

func lastDetail(notes *ui.Recorder, fallback string) string {
	if n, ok := notes.Last(); ok && n.Detail != "" {
		return n.Detail
	}
	return fallback
}
