package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ChannelTypeTwilio is the only channel type the backend accepts
const ChannelTypeTwilio = "TWILIO"

// ChannelRecord is a telephony integration of the organization
type ChannelRecord struct {
	ID        int64                  `json:"id" yaml:"id"`
	UUID      string                 `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Name      string                 `json:"name" yaml:"name"`
	Type      string                 `json:"type" yaml:"type"`
	CreatedBy *int64                 `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	MetaData  map[string]interface{} `json:"meta_data" yaml:"meta_data"`
	CreatedAt string                 `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt string                 `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// AccountSID returns the twilio account sid stored on the channel
func (r ChannelRecord) AccountSID() string {
	return metaString(r.MetaData, "account_sid")
}

// Redacted returns a copy with the auth token masked
func (r ChannelRecord) Redacted() ChannelRecord {
	out := r
	out.MetaData = make(map[string]interface{}, len(r.MetaData))
	for k, v := range r.MetaData {
		if s, ok := v.(string); ok && k == "auth_token" {
			v = MaskSecret(s)
		}
		out.MetaData[k] = v
	}
	return out
}

// TwilioMeta are the credentials of a twilio channel
type TwilioMeta struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
}

// ChannelUpsert creates a channel, or updates it when ID is set
type ChannelUpsert struct {
	ID       *int64     `json:"id,omitempty"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	MetaData TwilioMeta `json:"meta_data"`
}

// TwilioNumber is a number owned by the twilio account behind a channel
type TwilioNumber struct {
	PhoneNumber  string `json:"phone_number" yaml:"phone_number"`
	FriendlyName string `json:"friendly_name,omitempty" yaml:"friendly_name,omitempty"`
	SID          string `json:"sid,omitempty" yaml:"sid,omitempty"`
}

// ListChannels returns the organization's channels
func (c *Client) ListChannels(ctx context.Context) ([]ChannelRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/channel/list"}, &raw); err != nil {
		return nil, err
	}
	return decodeList[ChannelRecord](raw)
}

// UpsertChannel creates or updates a channel and returns the stored record
func (c *Client) UpsertChannel(ctx context.Context, channel ChannelUpsert) (*ChannelRecord, error) {
	var out ChannelRecord
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/channel/upsert",
		body:   channel,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChannel removes a channel
func (c *Client) DeleteChannel(ctx context.Context, channelID int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/channel/delete",
		query:  url.Values{"channel_id": {strconv.FormatInt(channelID, 10)}},
	}, nil)
}

// ListTwilioNumbers returns the numbers available to a channel type. A nil
// channelID lets the backend pick the credentials.
func (c *Client) ListTwilioNumbers(ctx context.Context, channelType string, channelID *int64) ([]TwilioNumber, error) {
	if channelType == "" {
		channelType = "twilio"
	}
	query := url.Values{"type": {strings.ToLower(channelType)}}
	if channelID != nil {
		query.Set("channel_id", strconv.FormatInt(*channelID, 10))
	}

	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/channel_phone_number/get_twilio_phone_numbers",
		query:  query,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[TwilioNumber](raw)
}

// MaskSecret keeps the first and last four characters of long secrets
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
