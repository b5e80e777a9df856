package mcp

import (
	"context"

	"github.com/tonehq/tonectl/internal/agentform"
	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/editor"
)

// ToneClient defines the backend operations the tools call
type ToneClient interface {
	editor.Backend

	ListAgents(ctx context.Context) ([]agentform.APIAgent, error)
	CheckOrganizationExists(ctx context.Context, name string) (*api.OrganizationCheck, error)
	GetOrganizationSettings(ctx context.Context) (*api.OrgSettings, error)
	ListChannels(ctx context.Context) ([]api.ChannelRecord, error)
	ListTwilioNumbers(ctx context.Context, channelType string, channelID *int64) ([]api.TwilioNumber, error)
}
