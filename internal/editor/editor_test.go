package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonehq/tonectl/internal/agentform"
	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/testing/mock"
	"github.com/tonehq/tonectl/internal/ui"
	"github.com/tonehq/tonectl/pkg/types"
)

type fixedConfirmer struct {
	mu       sync.Mutex
	approve  bool
	err      error
	messages []string
}

func (f *fixedConfirmer) ConfirmDestructive(ctx context.Context, message string) *ui.ConfirmationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return &ui.ConfirmationResult{Approved: f.approve, Error: f.err}
}

type harness struct {
	backend   *mock.Backend
	client    *api.Client
	notes     *ui.Recorder
	routes    *ui.RouteRecorder
	confirmer *fixedConfirmer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := mock.NewBackend()
	t.Cleanup(backend.Close)

	return &harness{
		backend: backend,
		client: api.New(
			api.WithBaseURL(backend.URL()),
			api.WithCredentials(api.StaticCredentials{Token: mock.IssueToken(100, "owner@example.com", time.Hour), Tenant: "10"}),
		),
		notes:     &ui.Recorder{},
		routes:    &ui.RouteRecorder{},
		confirmer: &fixedConfirmer{approve: true},
	}
}

func (h *harness) editor(backend Backend, agentType agentform.AgentType, id *int64) *Editor {
	return New(backend, agentType, id,
		WithNotifier(h.notes),
		WithNavigator(h.routes),
		WithConfirmer(h.confirmer),
		WithProfile("test"),
	)
}

func idPtr(id int64) *int64 { return &id }

func lastNote(t *testing.T, r *ui.Recorder) types.Notification {
	t.Helper()
	n, ok := r.Last()
	require.True(t, ok, "expected a notification")
	return n
}

func TestEditor_CreateMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e := h.editor(h.client, agentform.Outbound, nil)
	assert.Equal(t, StateReady, e.State())
	require.NoError(t, e.Open(ctx))
	assert.False(t, e.IsEdit())
	assert.Equal(t, agentform.DefaultFormState(agentform.Outbound), e.Form())
	assert.Zero(t, h.backend.CallCount("/agent/get_all_agents"))

	name := "Sales Bot"
	e.Update(agentform.Patch{Name: &name})

	before := h.backend.AgentCount()
	result, err := e.Save(ctx)
	require.NoError(t, err)
	assert.NotZero(t, result.ID)
	assert.Equal(t, before+1, h.backend.AgentCount())

	calls := h.backend.Calls("/agent/upsert_agent")
	require.Len(t, calls, 1)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	assert.NotContains(t, body, "id")
	assert.Equal(t, "outbound", body["agent_type"])
	assert.Equal(t, map[string]interface{}{"type": "TWILIO"}, body["channel"])

	n := lastNote(t, h.notes)
	assert.Equal(t, types.NotifySuccess, n.Level)
	assert.Equal(t, MsgCreated, n.Detail)
	assert.Equal(t, ui.RouteAgents, h.routes.Current())
	assert.Equal(t, StateNavigatedAway, e.State())
}

func TestEditor_EditModeLoadAndSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e := h.editor(h.client, agentform.Inbound, idPtr(1))
	assert.Equal(t, StateLoading, e.State())
	require.NoError(t, e.Open(ctx))
	assert.Equal(t, StateReady, e.State())
	assert.True(t, e.Loaded())

	form := e.Form()
	assert.Equal(t, "Customer Support Agent", form.Name)
	assert.Equal(t, 70, form.VoiceSpeed)
	assert.Equal(t, []string{"ToneHQ", "Pipecat"}, form.CustomVocabulary)
	assert.True(t, form.UseRealisticFillerWords)
	assert.Equal(t, agentform.PatienceMedium, form.PatienceLevel)

	desc := ""
	e.Update(agentform.Patch{Description: &desc})
	e.Update(agentform.AddVocabulary(e.Form(), "Deepgram"))

	_, err := e.Save(ctx)
	require.NoError(t, err)

	stored, ok := h.backend.Agent(1)
	require.True(t, ok)
	assert.Nil(t, stored["description"])
	assert.Equal(t, `["ToneHQ","Pipecat","Deepgram"]`, stored["custom_vocabulary"])

	calls := h.backend.Calls("/agent/upsert_agent")
	require.Len(t, calls, 1)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	assert.Equal(t, float64(1), body["id"])

	assert.Equal(t, MsgSaved, lastNote(t, h.notes).Detail)
	assert.Empty(t, h.routes.Routes())
	assert.Equal(t, StateReady, e.State())
}

func TestEditor_TypeFromRecord(t *testing.T) {
	h := newHarness(t)
	id := h.backend.AddAgent(map[string]interface{}{"name": "Dialer", "agent_type": "outbound"})

	e := h.editor(h.client, "", idPtr(id))
	require.NoError(t, e.Open(context.Background()))
	assert.Equal(t, agentform.Outbound, e.AgentType())
}

// A missing agent shows "Agent not found", keeps the defaults and refuses
// to save until a reload succeeds
func TestEditor_AgentNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e := h.editor(h.client, agentform.Inbound, idPtr(999))
	err := e.Open(ctx)
	assert.ErrorIs(t, err, ErrAgentNotFound)

	n := lastNote(t, h.notes)
	assert.Equal(t, types.NotifyError, n.Level)
	assert.Equal(t, TitleError, n.Title)
	assert.Equal(t, MsgAgentNotFound, n.Detail)

	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, agentform.DefaultFormState(agentform.Inbound), e.Form())
	assert.Empty(t, h.routes.Routes())

	_, err = e.Save(ctx)
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Equal(t, MsgNotLoaded, lastNote(t, h.notes).Detail)
	assert.Zero(t, h.backend.CallCount("/agent/upsert_agent"))
}

func TestEditor_LoadFailureThenReload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.backend.Fail("/agent/get_all_agents", 500, "boom")
	e := h.editor(h.client, agentform.Inbound, idPtr(1))
	err := e.Open(ctx)
	require.Error(t, err)
	assert.Equal(t, MsgLoadFailed, lastNote(t, h.notes).Detail)
	assert.False(t, e.Loaded())
	assert.Equal(t, StateReady, e.State())

	h.backend.Recover("/agent/get_all_agents")
	require.NoError(t, e.Reload(ctx))
	assert.True(t, e.Loaded())
	assert.Equal(t, "Customer Support Agent", e.Form().Name)

	_, err = e.Save(ctx)
	assert.NoError(t, err)
}

func TestEditor_SaveFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		id   *int64
		want string
	}{
		{"create", nil, MsgCreateFailed},
		{"edit", idPtr(1), MsgSaveFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := h.editor(h.client, agentform.Inbound, tt.id)
			require.NoError(t, e.Open(ctx))

			h.backend.Fail("/agent/upsert_agent", 422, "invalid")
			defer h.backend.Recover("/agent/upsert_agent")

			_, err := e.Save(ctx)
			require.Error(t, err)
			assert.Equal(t, tt.want, lastNote(t, h.notes).Detail)
			assert.Equal(t, StateReady, e.State())
			assert.False(t, e.Saving())
		})
	}
	assert.Empty(t, h.routes.Routes())
}

func TestEditor_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("declined", func(t *testing.T) {
		h := newHarness(t)
		h.confirmer.approve = false
		e := h.editor(h.client, agentform.Inbound, idPtr(1))
		require.NoError(t, e.Open(ctx))

		assert.ErrorIs(t, e.Delete(ctx), ErrDeclined)
		assert.Equal(t, []string{DeleteConfirmation}, h.confirmer.messages)
		assert.Zero(t, h.backend.CallCount("/agent/delete_agent"))
		assert.Empty(t, h.routes.Routes())
	})

	t.Run("edit mode", func(t *testing.T) {
		h := newHarness(t)
		e := h.editor(h.client, agentform.Inbound, idPtr(1))
		require.NoError(t, e.Open(ctx))

		require.NoError(t, e.Delete(ctx))
		_, ok := h.backend.Agent(1)
		assert.False(t, ok)
		assert.Equal(t, ui.RouteAgents, h.routes.Current())
		assert.Equal(t, StateNavigatedAway, e.State())
	})

	t.Run("create mode only navigates", func(t *testing.T) {
		h := newHarness(t)
		e := h.editor(h.client, agentform.Inbound, nil)

		require.NoError(t, e.Delete(ctx))
		assert.Zero(t, h.backend.CallCount("/agent/delete_agent"))
		assert.Equal(t, ui.RouteAgents, h.routes.Current())
	})

	t.Run("failure stays", func(t *testing.T) {
		h := newHarness(t)
		e := h.editor(h.client, agentform.Inbound, idPtr(1))
		require.NoError(t, e.Open(ctx))
		h.backend.Fail("/agent/delete_agent", 500, "nope")

		require.Error(t, e.Delete(ctx))
		assert.Equal(t, MsgDeleteFailed, lastNote(t, h.notes).Detail)
		assert.Empty(t, h.routes.Routes())
		assert.Equal(t, StateReady, e.State())
	})

	t.Run("confirmation error", func(t *testing.T) {
		h := newHarness(t)
		h.confirmer.err = errors.New("stdin closed")
		e := h.editor(h.client, agentform.Inbound, idPtr(1))
		require.NoError(t, e.Open(ctx))

		require.Error(t, e.Delete(ctx))
		assert.Zero(t, h.backend.CallCount("/agent/delete_agent"))
	})
}

func TestEditor_PhoneNumbers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e := h.editor(h.client, agentform.Inbound, idPtr(1))
	require.NoError(t, e.Open(ctx))
	assert.Equal(t, []agentform.PhoneNumber{{No: "+15550100"}}, e.Form().PhoneNumbers)

	numbers := []agentform.PhoneNumber{{Type: "twilio", No: "+15550111"}, {Type: "twilio", No: "+15550122"}}
	require.NoError(t, e.AssignPhoneNumbers(ctx, numbers))
	assert.Equal(t, numbers, e.Form().PhoneNumbers)
	assert.Equal(t, []string{"+15550111", "+15550122"}, h.backend.PhoneNumbers(7))
	assert.Equal(t, MsgAssigned, lastNote(t, h.notes).Detail)

	calls := h.backend.Calls("/channel_phone_number/upsert_channel_phone_number")
	require.Len(t, calls, 1)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	assert.Equal(t, "AC123", body["phone_number_sid"])
	assert.Equal(t, float64(7), body["channel_id"])
	assert.Equal(t, "twilio", body["provider"])

	require.NoError(t, e.UnassignPhoneNumber(ctx, "+15550111"))
	assert.Equal(t, []agentform.PhoneNumber{{Type: "twilio", No: "+15550122"}}, e.Form().PhoneNumbers)
	assert.Equal(t, []string{"+15550122"}, h.backend.PhoneNumbers(7))
	assert.Equal(t, MsgUnassigned, lastNote(t, h.notes).Detail)

	assert.Error(t, e.UnassignPhoneNumber(ctx, "+19999999"))
}

func TestEditor_PhoneNumberErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	create := h.editor(h.client, agentform.Inbound, nil)
	assert.ErrorIs(t, create.AssignPhoneNumbers(ctx, nil), ErrCreateMode)

	id := h.backend.AddAgent(map[string]interface{}{"name": "No Channel"})
	e := h.editor(h.client, agentform.Inbound, idPtr(id))
	require.NoError(t, e.Open(ctx))
	assert.ErrorIs(t, e.AssignPhoneNumbers(ctx, []agentform.PhoneNumber{{No: "+1"}}), ErrNoChannel)
	assert.Equal(t, MsgAssignFailed, lastNote(t, h.notes).Detail)

	withChannel := h.editor(h.client, agentform.Inbound, idPtr(1))
	require.NoError(t, withChannel.Open(ctx))
	h.backend.Fail("/channel_phone_number/upsert_channel_phone_number", 500, "down")
	assert.Error(t, withChannel.AssignPhoneNumbers(ctx, []agentform.PhoneNumber{{No: "+1"}}))
	assert.Equal(t, MsgAssignFailed, lastNote(t, h.notes).Detail)
	assert.Equal(t, []agentform.PhoneNumber{{No: "+15550100"}}, withChannel.Form().PhoneNumbers)
}

// gatedBackend blocks chosen calls until released
type gatedBackend struct {
	agent   *agentform.APIAgent
	entered chan string
	release chan struct{}

	mu      sync.Mutex
	upserts int
}

func newGatedBackend() *gatedBackend {
	name := "Gated"
	return &gatedBackend{
		agent:   &agentform.APIAgent{ID: 5, Name: &name},
		entered: make(chan string, 4),
		release: make(chan struct{}),
	}
}

func (g *gatedBackend) GetAgent(ctx context.Context, id int64) (*agentform.APIAgent, error) {
	g.entered <- "get"
	<-g.release
	return g.agent, nil
}

func (g *gatedBackend) UpsertAgent(ctx context.Context, payload agentform.UpsertPayload) (*api.UpsertResult, error) {
	g.mu.Lock()
	g.upserts++
	g.mu.Unlock()
	g.entered <- "upsert"
	select {
	case <-g.release:
		return &api.UpsertResult{ID: 5}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedBackend) DeleteAgent(ctx context.Context, id int64) error { return nil }

func (g *gatedBackend) AssignPhoneNumbers(ctx context.Context, assignment api.PhoneAssignment) error {
	return nil
}

func (g *gatedBackend) DetachPhoneNumber(ctx context.Context, channelID int64, number string) error {
	return nil
}

func TestEditor_InFlightGuard(t *testing.T) {
	h := newHarness(t)
	g := newGatedBackend()
	e := h.editor(g, agentform.Inbound, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.Save(ctx)
		done <- err
	}()
	require.Equal(t, "upsert", <-g.entered)
	assert.True(t, e.Saving())

	_, err := e.Save(ctx)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, e.Delete(ctx), ErrBusy)
	assert.Empty(t, h.confirmer.messages)

	close(g.release)
	require.NoError(t, <-done)

	g.mu.Lock()
	assert.Equal(t, 1, g.upserts)
	g.mu.Unlock()
}

func TestEditor_CloseDropsLateLoad(t *testing.T) {
	h := newHarness(t)
	g := newGatedBackend()
	e := h.editor(g, agentform.Inbound, idPtr(5))

	done := make(chan error, 1)
	go func() { done <- e.Open(context.Background()) }()
	require.Equal(t, "get", <-g.entered)

	e.Close()
	close(g.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.False(t, e.Loaded())
	assert.Equal(t, "My Inbound Assistant", e.Form().Name)
	assert.Empty(t, h.notes.Notifications())

	_, err := e.Save(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEditor_SupersededLoad(t *testing.T) {
	h := newHarness(t)
	g := newGatedBackend()
	e := h.editor(g, agentform.Inbound, idPtr(5))

	first := make(chan error, 1)
	go func() { first <- e.Open(context.Background()) }()
	require.Equal(t, "get", <-g.entered)

	second := make(chan error, 1)
	go func() { second <- e.Reload(context.Background()) }()
	require.Equal(t, "get", <-g.entered)

	close(g.release)

	assert.ErrorIs(t, <-first, ErrSuperseded)
	require.NoError(t, <-second)
	assert.True(t, e.Loaded())
	assert.Equal(t, "Gated", e.Form().Name)
	assert.Equal(t, StateReady, e.State())
}

func TestEditor_NavigatedAwayIsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created := h.editor(h.client, agentform.Outbound, nil)
	require.NoError(t, created.Open(ctx))
	_, err := created.Save(ctx)
	require.NoError(t, err)
	require.Equal(t, StateNavigatedAway, created.State())

	_, err = created.Save(ctx)
	assert.ErrorIs(t, err, ErrNavigatedAway)
	assert.ErrorIs(t, created.Delete(ctx), ErrNavigatedAway)
	assert.Len(t, h.backend.Calls("/agent/upsert_agent"), 1)
	assert.Equal(t, 2, h.backend.AgentCount())

	deleted := h.editor(h.client, agentform.Inbound, idPtr(1))
	require.NoError(t, deleted.Open(ctx))
	require.NoError(t, deleted.Delete(ctx))
	require.Equal(t, StateNavigatedAway, deleted.State())

	_, err = deleted.Save(ctx)
	assert.ErrorIs(t, err, ErrNavigatedAway)
	assert.ErrorIs(t, deleted.Reload(ctx), ErrNavigatedAway)
	assert.ErrorIs(t, deleted.AssignPhoneNumbers(ctx, []agentform.PhoneNumber{{No: "+1"}}), ErrNavigatedAway)
	assert.Len(t, h.backend.Calls("/agent/upsert_agent"), 1)
	assert.Len(t, h.backend.Calls("/channel_phone_number/upsert_channel_phone_number"), 0)
}

func TestEditor_CloseCancelsSave(t *testing.T) {
	h := newHarness(t)
	g := newGatedBackend()
	e := h.editor(g, agentform.Inbound, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.Save(context.Background())
		done <- err
	}()
	require.Equal(t, "upsert", <-g.entered)

	e.Close()
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, h.notes.Notifications())
	assert.Empty(t, h.routes.Routes())
}

func TestEditor_UpdateReturnsSnapshot(t *testing.T) {
	h := newHarness(t)
	e := h.editor(h.client, agentform.Inbound, nil)

	speed := 80
	snap := e.Update(agentform.Patch{VoiceSpeed: &speed})
	snap.CustomVocabulary = append(snap.CustomVocabulary, "leak")

	assert.Equal(t, 80, e.Form().VoiceSpeed)
	assert.Empty(t, e.Form().CustomVocabulary)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "navigated-away", StateNavigatedAway.String())
	assert.Equal(t, "State(42)", State(42).String())
}
