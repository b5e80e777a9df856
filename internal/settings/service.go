// Package settings drives the organization settings pages: access
// settings, members and invitations, telephony channels, the numbers those
// channels own, and generated API keys.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/ui"
	"github.com/tonehq/tonectl/internal/validation"
	"github.com/tonehq/tonectl/pkg/types"
)

var (
	// ErrForbidden is returned when the session's role cannot manage the organization
	ErrForbidden = errors.New("only owners and admins can manage the organization")

	// ErrAutoVerifyNeedsAccess is returned when auto-verify is turned on
	// while access requests are off
	ErrAutoVerifyNeedsAccess = errors.New("auto-verify requires access requests to be allowed")

	// ErrDeclined is returned when the user answers no to a confirmation
	ErrDeclined = errors.New("operation not confirmed")
)

// User-facing messages
const (
	TitleSuccess = "Success"
	TitleError   = "Error"

	MsgSettingsUpdated      = "Settings updated successfully"
	MsgSettingsFailed       = "Failed to update settings"
	MsgInviteFailed         = "Failed to send invitation"
	MsgRoleUpdated          = "Role updated successfully"
	MsgRoleFailed           = "Failed to update role"
	MsgIntegrationCreated   = "Integration created successfully"
	MsgIntegrationUpdated   = "Integration updated successfully"
	MsgIntegrationFailed    = "Failed to save integration. Please try again."
	MsgIntegrationDeleted   = "Integration deleted successfully"
	MsgIntegrationDelFailed = "Failed to delete integration. Please try again."

	DeleteChannelConfirmation = "Deleting this integration will stop calls on every number it owns. Are you sure?"
)

// Backend is the slice of the API client the settings pages drive
type Backend interface {
	GetOrganizationSettings(ctx context.Context) (*api.OrgSettings, error)
	UpdateOrganizationSettings(ctx context.Context, update api.OrgSettingsUpdate) error
	ListMembers(ctx context.Context) ([]api.Member, error)
	ListInvitations(ctx context.Context) ([]api.Invitation, error)
	InviteMember(ctx context.Context, invite api.Invite) error
	UpdateMemberRole(ctx context.Context, memberID int64, role string) error
	ListChannels(ctx context.Context) ([]api.ChannelRecord, error)
	UpsertChannel(ctx context.Context, channel api.ChannelUpsert) (*api.ChannelRecord, error)
	DeleteChannel(ctx context.Context, channelID int64) error
	ListTwilioNumbers(ctx context.Context, channelType string, channelID *int64) ([]api.TwilioNumber, error)
	ListAPIKeys(ctx context.Context) ([]api.APIKey, error)
}

// Confirmer answers blocking yes/no questions
type Confirmer interface {
	ConfirmDestructive(ctx context.Context, message string) *ui.ConfirmationResult
}

// Service runs settings operations for one session
type Service struct {
	backend   Backend
	validator *validation.Validator
	notifier  ui.Notifier
	confirmer Confirmer
	audit     *audit.Logger
	log       *logging.Logger
	profile   string
	role      string
}

// New creates a settings service over backend
func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		validator: validation.NewValidator(),
		notifier:  &ui.Recorder{},
		confirmer: ui.NewConfirmer(types.Confirmation{}),
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanManage reports whether the session's role may change settings and
// members. An unknown role leaves the decision to the backend.
func (s *Service) CanManage() bool {
	switch s.role {
	case "", api.RoleOwner, api.RoleAdmin:
		return true
	default:
		return false
	}
}

// Settings fetches the organization's access settings
func (s *Service) Settings(ctx context.Context) (*api.OrgSettings, error) {
	settings, err := s.backend.GetOrganizationSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings applies the fields set in update to the current settings
// and sends both values. Turning access requests off turns auto-verify off.
func (s *Service) UpdateSettings(ctx context.Context, update api.OrgSettingsUpdate) (*api.OrgSettings, error) {
	if !s.CanManage() {
		return nil, ErrForbidden
	}

	current, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	next := *current
	if update.AllowAccessRequests != nil {
		next.AllowAccessRequests = *update.AllowAccessRequests
	}
	if update.AutoVerifySameDomain != nil {
		next.AutoVerifySameDomain = *update.AutoVerifySameDomain
	}
	if !next.AllowAccessRequests {
		if update.AutoVerifySameDomain != nil && *update.AutoVerifySameDomain {
			return nil, ErrAutoVerifyNeedsAccess
		}
		next.AutoVerifySameDomain = false
	}

	err = s.backend.UpdateOrganizationSettings(ctx, api.OrgSettingsUpdate{
		AllowAccessRequests:  &next.AllowAccessRequests,
		AutoVerifySameDomain: &next.AutoVerifySameDomain,
	})
	details := map[string]interface{}{
		"allow_access_requests":   next.AllowAccessRequests,
		"auto_verify_same_domain": next.AutoVerifySameDomain,
	}
	if err != nil {
		details["error"] = err.Error()
		s.audit.LogOrgOperation(audit.EventOrgSettings, "settings", s.profile, false, details)
		ui.Error(s.notifier, TitleError, api.Detail(err, MsgSettingsFailed))
		return nil, fmt.Errorf("failed to update organization settings: %w", err)
	}

	s.audit.LogOrgOperation(audit.EventOrgSettings, "settings", s.profile, true, details)
	ui.Success(s.notifier, TitleSuccess, MsgSettingsUpdated)
	return &next, nil
}

// Members lists the organization's active members
func (s *Service) Members(ctx context.Context) ([]api.Member, error) {
	members, err := s.backend.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// Invitations lists the organization's invitations
func (s *Service) Invitations(ctx context.Context) ([]api.Invitation, error) {
	invitations, err := s.backend.ListInvitations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// Invite sends an invitation email
func (s *Service) Invite(ctx context.Context, name, email, role string) error {
	if !s.CanManage() {
		return ErrForbidden
	}
	in, err := s.validator.ValidateInvite(name, email, role)
	if err != nil {
		return err
	}

	err = s.backend.InviteMember(ctx, api.Invite{Name: in.Name, Email: in.Email, Role: in.Role})
	details := map[string]interface{}{"email": in.Email, "role": in.Role}
	if err != nil {
		details["error"] = err.Error()
		s.audit.LogOrgOperation(audit.EventMemberInvite, "invitation", s.profile, false, details)
		ui.Error(s.notifier, TitleError, api.Detail(err, MsgInviteFailed))
		return fmt.Errorf("failed to invite %s: %w", in.Email, err)
	}

	s.audit.LogOrgOperation(audit.EventMemberInvite, "invitation", s.profile, true, details)
	ui.Success(s.notifier, TitleSuccess, "Invitation sent to "+in.Email)
	return nil
}

// ChangeRole sets one member's role
func (s *Service) ChangeRole(ctx context.Context, memberID int64, role string) error {
	if !s.CanManage() {
		return ErrForbidden
	}
	if memberID <= 0 {
		return fmt.Errorf("member id must be a positive number, got %d", memberID)
	}
	role, err := s.validator.ValidateRole(role)
	if err != nil {
		return err
	}

	resource := fmt.Sprintf("member:%d", memberID)
	err = s.backend.UpdateMemberRole(ctx, memberID, role)
	if err != nil {
		s.audit.LogOrgOperation(audit.EventMemberRole, resource, s.profile, false, map[string]interface{}{"role": role, "error": err.Error()})
		ui.Error(s.notifier, TitleError, api.Detail(err, MsgRoleFailed))
		return fmt.Errorf("failed to update role of member %d: %w", memberID, err)
	}

	s.audit.LogOrgOperation(audit.EventMemberRole, resource, s.profile, true, map[string]interface{}{"role": role})
	ui.Success(s.notifier, TitleSuccess, MsgRoleUpdated)
	return nil
}

// Channels lists the organization's telephony channels
func (s *Service) Channels(ctx context.Context) ([]api.ChannelRecord, error) {
	channels, err := s.backend.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// SaveChannel creates a Twilio channel, or updates it when id is set
func (s *Service) SaveChannel(ctx context.Context, id *int64, name, accountSID, authToken string) (*api.ChannelRecord, error) {
	in, err := s.validator.ValidateChannel(name, accountSID, authToken)
	if err != nil {
		return nil, err
	}

	rec, err := s.backend.UpsertChannel(ctx, api.ChannelUpsert{
		ID:       id,
		Name:     in.Name,
		Type:     api.ChannelTypeTwilio,
		MetaData: api.TwilioMeta{AccountSID: in.AccountSID, AuthToken: in.AuthToken},
	})

	resource := "channel"
	if id != nil {
		resource = fmt.Sprintf("channel:%d", *id)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("channel", in.Name).Msg("failed to save channel")
		s.audit.LogOrgOperation(audit.EventChannelUpsert, resource, s.profile, false, map[string]interface{}{"name": in.Name, "error": err.Error()})
		ui.Error(s.notifier, TitleError, api.Detail(err, MsgIntegrationFailed))
		return nil, fmt.Errorf("failed to save channel %q: %w", in.Name, err)
	}

	s.audit.LogOrgOperation(audit.EventChannelUpsert, fmt.Sprintf("channel:%d", rec.ID), s.profile, true, map[string]interface{}{"name": in.Name})
	if id == nil {
		ui.Success(s.notifier, TitleSuccess, MsgIntegrationCreated)
	} else {
		ui.Success(s.notifier, TitleSuccess, MsgIntegrationUpdated)
	}
	return rec, nil
}

// DeleteChannel asks for confirmation, then removes a channel
func (s *Service) DeleteChannel(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("channel id must be a positive number, got %d", id)
	}

	res := s.confirmer.ConfirmDestructive(ctx, DeleteChannelConfirmation)
	if res.Error != nil {
		return fmt.Errorf("confirmation failed: %w", res.Error)
	}
	if !res.Approved {
		return ErrDeclined
	}

	resource := fmt.Sprintf("channel:%d", id)
	if err := s.backend.DeleteChannel(ctx, id); err != nil {
		s.audit.LogOrgOperation(audit.EventChannelDelete, resource, s.profile, false, map[string]interface{}{"error": err.Error()})
		ui.Error(s.notifier, TitleError, api.Detail(err, MsgIntegrationDelFailed))
		return fmt.Errorf("failed to delete channel %d: %w", id, err)
	}

	s.audit.LogOrgOperation(audit.EventChannelDelete, resource, s.profile, true, nil)
	ui.Success(s.notifier, TitleSuccess, MsgIntegrationDeleted)
	return nil
}

// PhoneNumbers lists the Twilio numbers a channel can attach. A nil
// channelID lets the backend pick the organization's credentials.
func (s *Service) PhoneNumbers(ctx context.Context, channelID *int64) ([]api.TwilioNumber, error) {
	numbers, err := s.backend.ListTwilioNumbers(ctx, "twilio", channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone numbers: %w", err)
	}
	return numbers, nil
}

// APIKeys lists the organization's generated API keys
func (s *Service) APIKeys(ctx context.Context) ([]api.APIKey, error) {
	keys, err := s.backend.ListAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}
