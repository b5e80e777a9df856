package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonehq/tonectl/internal/agentform"
	"github.com/tonehq/tonectl/internal/testing/mock"
)

func newTestClient(t *testing.T) (*Client, *mock.Backend) {
	t.Helper()
	backend := mock.NewBackend()
	t.Cleanup(backend.Close)

	client := New(
		WithBaseURL(backend.URL()+"/"),
		WithTimeout(5*time.Second),
		WithCredentials(StaticCredentials{
			Token:  mock.IssueToken(100, "owner@example.com", time.Hour),
			Tenant: "10",
		}),
	)
	return client, backend
}

func TestClient_Headers(t *testing.T) {
	client, backend := newTestClient(t)

	_, err := client.ListAgents(context.Background())
	require.NoError(t, err)

	calls := backend.Calls("/agent/get_all_agents")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Header.Get("Authorization"), "Bearer ")
	assert.Equal(t, "10", calls[0].Header.Get("tenant_id"))
}

func TestClient_ListAgents(t *testing.T) {
	for _, wrapped := range []bool{false, true} {
		client, backend := newTestClient(t)
		backend.WrapLists = wrapped
		backend.AddAgent(map[string]interface{}{"name": "Second", "agent_type": "outbound"})

		agents, err := client.ListAgents(context.Background())
		require.NoError(t, err)
		require.Len(t, agents, 2)
		assert.Equal(t, "Customer Support Agent", agents[0].DisplayName())
		assert.Equal(t, "outbound", agents[1].AgentType)
	}
}

func TestClient_GetAgent(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	agent, err := client.GetAgent(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, int64(1), agent.ID)

	form := agentform.FromAPI(agent, agentform.Inbound)
	assert.Equal(t, []string{"ToneHQ", "Pipecat"}, form.CustomVocabulary)
	assert.Equal(t, 70, form.VoiceSpeed)

	missing, err := client.GetAgent(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_UpsertAndDelete(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	form := agentform.DefaultFormState(agentform.Outbound)
	created, err := client.UpsertAgent(ctx, agentform.ToUpsertPayload(form, agentform.Outbound, nil))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	var sent map[string]interface{}
	calls := backend.Calls("/agent/upsert_agent")
	require.Len(t, calls, 1)
	require.NoError(t, json.Unmarshal(calls[0].Body, &sent))
	assert.NotContains(t, sent, "id")
	assert.Equal(t, map[string]interface{}{"type": "TWILIO"}, sent["channel"])

	form.Name = "Renamed"
	updated, err := client.UpsertAgent(ctx, agentform.ToUpsertPayload(form, agentform.Outbound, &created.ID))
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	stored, ok := backend.Agent(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Renamed", stored["name"])

	require.NoError(t, client.DeleteAgent(ctx, created.ID))
	_, ok = backend.Agent(created.ID)
	assert.False(t, ok)

	err = client.DeleteAgent(ctx, created.ID)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Agent not found", Detail(err, "fallback"))
}

func TestClient_Unauthenticated(t *testing.T) {
	backend := mock.NewBackend()
	defer backend.Close()

	client := New(WithBaseURL(backend.URL()))
	_, err := client.ListAgents(context.Background())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Not authenticated", apiErr.Detail)
}

func TestClient_NetworkError(t *testing.T) {
	backend := mock.NewBackend()
	url := backend.URL()
	backend.Close()

	client := New(WithBaseURL(url), WithTimeout(time.Second))
	_, err := client.CheckOrganizationExists(context.Background(), "Acme")

	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "fallback", Detail(err, "fallback"))
}

func TestClient_ContextCancelled(t *testing.T) {
	client, backend := newTestClient(t)
	backend.Delay("/agent/get_all_agents", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetAgent(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Login(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	resp, err := client.Login(ctx, "owner@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "100", resp.UserID.String())
	require.Len(t, resp.Organizations, 1)
	assert.Equal(t, int64(10), resp.Organizations[0].ID)
	assert.Contains(t, string(resp.Raw), "access_token")

	// login never sends the stored token
	calls := backend.Calls("/auth/login")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Header.Get("Authorization"))

	_, err = client.Login(ctx, "owner@example.com", "wrong")
	assert.Equal(t, "Invalid email or password", Detail(err, ""))
}

func TestClient_Firebase(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()
	backend.AddFirebaseUser("fb-new", "new@example.com")
	backend.AddFirebaseUser("fb-owner", "owner@example.com")

	_, err := client.AccessTokenByFirebase(ctx, "fb-new")
	assert.True(t, IsUserNotFound(err))

	resp, err := client.SignupWithFirebase(ctx, "fb-new", "new@example.com", map[string]interface{}{"name": "New"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	resp, err = client.AccessTokenByFirebase(ctx, "fb-owner")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", resp.Email)

	calls := backend.Calls("/auth/get_app_access_token_by_firebase")
	require.NotEmpty(t, calls)
	assert.Equal(t, "Bearer fb-owner", calls[len(calls)-1].Header.Get("Authorization"))
}

func TestClient_SignupAndOrgCheck(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	check, err := client.CheckOrganizationExists(ctx, "  existing org ")
	require.NoError(t, err)
	assert.True(t, check.Exists)
	require.NotNil(t, check.Organization)
	assert.Equal(t, "existing-org", check.Organization.Slug)

	org := "Fresh Co"
	_, err = client.Signup(ctx, SignupRequest{
		Email:    "fresh@example.com",
		Username: "fresh",
		Password: "Secr3t!!",
		OrgName:  &org,
	})
	require.NoError(t, err)

	check, err = client.CheckOrganizationExists(ctx, "Fresh Co")
	require.NoError(t, err)
	assert.True(t, check.Exists)

	_, err = client.Signup(ctx, SignupRequest{Email: "fresh@example.com", Username: "again", Password: "x"})
	assert.Equal(t, "User with this email already exists", Detail(err, ""))
}

func TestClient_PhoneNumbers(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	channel := agentform.Channel{ID: 7, Type: "twilio", MetaData: map[string]interface{}{"account_sid": "AC123"}}
	assignment := NewTwilioAssignment(channel, []agentform.PhoneNumber{{Type: "twilio", No: "+1555"}, {Type: "twilio", No: "+1666"}})
	assert.Equal(t, "AC123", assignment.PhoneNumberSID)

	require.NoError(t, client.AssignPhoneNumbers(ctx, assignment))
	assert.Equal(t, []string{"+1555", "+1666"}, backend.PhoneNumbers(7))

	require.NoError(t, client.DetachPhoneNumber(ctx, 7, "+1555"))
	assert.Equal(t, []string{"+1666"}, backend.PhoneNumbers(7))
}

func TestClient_ListServiceProviders(t *testing.T) {
	client, _ := newTestClient(t)

	all, err := client.ListServiceProviders(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tts, err := client.ListServiceProviders(context.Background(), ProviderTTS)
	require.NoError(t, err)
	require.Len(t, tts, 1)
	assert.Equal(t, "ElevenLabs", tts[0].DisplayName)
}
