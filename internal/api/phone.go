package api

import (
	"context"
	"net/http"

	"github.com/tonehq/tonectl/internal/agentform"
)

// Capabilities are the messaging features of an assigned number
type Capabilities struct {
	Voice bool `json:"voice"`
	SMS   bool `json:"sms"`
	MMS   bool `json:"mms"`
}

// PhoneAssignment attaches numbers to a channel
type PhoneAssignment struct {
	PhoneNumbers         []agentform.PhoneNumber `json:"phone_number"`
	PhoneNumberSID       string                  `json:"phone_number_sid,omitempty"`
	PhoneNumberAuthToken string                  `json:"phone_number_auth_token,omitempty"`
	Provider             string                  `json:"provider"`
	ChannelID            int64                   `json:"channel_id"`
	CountryCode          string                  `json:"country_code"`
	NumberType           string                  `json:"number_type"`
	Capabilities         Capabilities            `json:"capabilities"`
	Status               string                  `json:"status"`
}

// NewTwilioAssignment builds the assignment body for a twilio channel
func NewTwilioAssignment(channel agentform.Channel, numbers []agentform.PhoneNumber) PhoneAssignment {
	return PhoneAssignment{
		PhoneNumbers:         numbers,
		PhoneNumberSID:       metaString(channel.MetaData, "account_sid"),
		PhoneNumberAuthToken: metaString(channel.MetaData, "auth_token"),
		Provider:             "twilio",
		ChannelID:            channel.ID,
		CountryCode:          "+1",
		NumberType:           "international",
		Capabilities:         Capabilities{Voice: true, MMS: true},
		Status:               "active",
	}
}

// AssignPhoneNumbers upserts the numbers of one channel
func (c *Client) AssignPhoneNumbers(ctx context.Context, assignment PhoneAssignment) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/channel_phone_number/upsert_channel_phone_number",
		body:   assignment,
	}, nil)
}

// DetachPhoneNumber removes one number from a channel
func (c *Client) DetachPhoneNumber(ctx context.Context, channelID int64, number string) error {
	body := struct {
		ChannelID   int64  `json:"channel_id"`
		PhoneNumber string `json:"phone_number"`
	}{channelID, number}

	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/channel_phone_number/detach_channel_phone_number",
		body:   body,
	}, nil)
}

func metaString(meta map[string]interface{}, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
