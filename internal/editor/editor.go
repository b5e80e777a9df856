// Package editor is the create/edit agent page controller: it owns one
// agent's draft, loads it in edit mode, and drives save, delete and phone
// number assignment against the backend.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tonehq/tonectl/internal/agentform"
	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/ui"
	"github.com/tonehq/tonectl/pkg/types"
)

var (
	// ErrBusy is returned when a save, delete or phone operation is already running
	ErrBusy = errors.New("another operation is in progress")

	// ErrNotLoaded is returned by edit-mode operations when the agent never loaded
	ErrNotLoaded = errors.New("agent not loaded, reload before saving")

	// ErrClosed is returned once the editor has been closed
	ErrClosed = errors.New("editor closed")

	// ErrNavigatedAway is returned once a create or delete has left the page
	ErrNavigatedAway = errors.New("editor navigated away")

	// ErrSuperseded is returned by a load whose result was replaced by a newer load
	ErrSuperseded = errors.New("load superseded by a newer reload")

	// ErrDeclined is returned when the user answers no to a confirmation
	ErrDeclined = errors.New("operation not confirmed")

	// ErrAgentNotFound is returned when an edit-mode load finds no agent
	ErrAgentNotFound = errors.New("agent not found")

	// ErrNoChannel is returned when the agent has no channel to attach numbers to
	ErrNoChannel = errors.New("agent has no twilio channel")

	// ErrCreateMode is returned by operations that need a saved agent
	ErrCreateMode = errors.New("agent has not been created yet")
)

// User-facing messages
const (
	TitleSuccess = "Success"
	TitleError   = "Error"

	MsgAgentNotFound  = "Agent not found"
	MsgLoadFailed     = "Failed to load agent"
	MsgNotLoaded      = "Agent is not loaded. Reload it before saving."
	MsgCreated        = "Agent created successfully"
	MsgSaved          = "Agent saved successfully"
	MsgCreateFailed   = "Failed to create agent. Please try again."
	MsgSaveFailed     = "Failed to save agent. Please try again."
	MsgDeleteFailed   = "Failed to delete agent"
	MsgAssigned       = "Phone number(s) assigned successfully"
	MsgAssignFailed   = "Failed to assign phone number(s). Please try again."
	MsgUnassigned     = "Phone number unassigned successfully"
	MsgUnassignFailed = "Failed to unassign phone number. Please try again."

	DeleteConfirmation = "Deleting an agent will erase personalized data, voice profiles, and integrations. Are you sure?"
)

// Backend is the slice of the API client the editor drives
type Backend interface {
	GetAgent(ctx context.Context, id int64) (*agentform.APIAgent, error)
	UpsertAgent(ctx context.Context, payload agentform.UpsertPayload) (*api.UpsertResult, error)
	DeleteAgent(ctx context.Context, id int64) error
	AssignPhoneNumbers(ctx context.Context, assignment api.PhoneAssignment) error
	DetachPhoneNumber(ctx context.Context, channelID int64, number string) error
}

// Confirmer answers blocking yes/no questions
type Confirmer interface {
	ConfirmDestructive(ctx context.Context, message string) *ui.ConfirmationResult
}

// State is where the page is in its lifecycle
type State int

const (
	StateLoading State = iota
	StateReady
	StateSaving
	StateDeleting
	StateNavigatedAway
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateDeleting:
		return "deleting"
	case StateNavigatedAway:
		return "navigated-away"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Editor controls one agent's create or edit page. The mode is fixed at
// construction: a nil agent id means create.
type Editor struct {
	backend   Backend
	notifier  ui.Notifier
	navigator ui.Navigator
	confirmer Confirmer
	audit     *audit.Logger
	log       *logging.Logger
	profile   string

	agentID *int64

	mu        sync.Mutex
	agentType agentform.AgentType
	form      agentform.FormState
	state     State
	loaded    bool
	busy      bool
	closed    bool
	loadGen   uint64

	// canceled by Close; every backend call is bound to it
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an editor. agentID nil selects create mode. In edit mode an
// empty agentType is taken from the loaded record.
func New(backend Backend, agentType agentform.AgentType, agentID *int64, opts ...Option) *Editor {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Editor{
		backend:   backend,
		notifier:  &ui.Recorder{},
		navigator: &ui.RouteRecorder{},
		confirmer: ui.NewConfirmer(types.Confirmation{}),
		log:       logging.Nop(),
		agentType: agentType,
		state:     StateReady,
		ctx:       ctx,
		cancel:    cancel,
	}
	if agentID != nil {
		id := *agentID
		e.agentID = &id
		e.state = StateLoading
	}
	e.form = agentform.DefaultFormState(e.defaultType())

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open runs the page's entry step: a fetch in edit mode, nothing in create mode
func (e *Editor) Open(ctx context.Context) error {
	if e.agentID == nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.usable(); err != nil {
			return err
		}
		e.state = StateReady
		return nil
	}
	return e.load(ctx)
}

// Reload fetches the agent again, replacing the draft on success
func (e *Editor) Reload(ctx context.Context) error {
	if e.agentID == nil {
		return ErrCreateMode
	}
	return e.load(ctx)
}

func (e *Editor) load(ctx context.Context) error {
	id := *e.agentID

	e.mu.Lock()
	if err := e.usable(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	e.state = StateLoading
	e.loadGen++
	gen := e.loadGen
	e.mu.Unlock()

	e.log.Debug().Int64("agent_id", id).Msg("loading agent")

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	agent, err := e.backend.GetAgent(ctx, id)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if gen != e.loadGen {
		e.mu.Unlock()
		return ErrSuperseded
	}
	e.state = StateReady

	switch {
	case err != nil:
		e.mu.Unlock()
		e.log.Warn().Err(err).Int64("agent_id", id).Msg("failed to load agent")
		e.audit.LogAgentOperation(audit.EventAgentAccess, id, e.profile, false, map[string]interface{}{"error": err.Error()})
		ui.Error(e.notifier, TitleError, MsgLoadFailed)
		return fmt.Errorf("failed to load agent %d: %w", id, err)

	case agent == nil:
		e.mu.Unlock()
		e.audit.LogAgentOperation(audit.EventAgentAccess, id, e.profile, false, map[string]interface{}{"reason": "not found"})
		ui.Error(e.notifier, TitleError, MsgAgentNotFound)
		return ErrAgentNotFound
	}

	if e.agentType == "" {
		if t, perr := agentform.ParseAgentType(agent.AgentType); perr == nil {
			e.agentType = t
		} else {
			e.agentType = agentform.Inbound
		}
	}
	e.form = agentform.FromAPI(agent, e.agentType)
	e.loaded = true
	e.mu.Unlock()

	e.audit.LogAgentOperation(audit.EventAgentAccess, id, e.profile, true, nil)
	return nil
}

// Update merges a tab's partial edit into the draft and returns the new snapshot
func (e *Editor) Update(p agentform.Patch) agentform.FormState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.usable() == nil {
		e.form = p.Apply(e.form)
	}
	return e.form.Clone()
}

// Save creates or updates the agent from the current draft. A create
// navigates to the agent list; an edit stays on the page.
func (e *Editor) Save(ctx context.Context) (*api.UpsertResult, error) {
	e.mu.Lock()
	if err := e.usable(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if e.agentID != nil && !e.loaded {
		e.mu.Unlock()
		ui.Error(e.notifier, TitleError, MsgNotLoaded)
		return nil, ErrNotLoaded
	}
	e.busy = true
	e.state = StateSaving
	payload := agentform.ToUpsertPayload(e.form, e.defaultType(), e.agentID)
	e.mu.Unlock()

	defer e.release(StateSaving)

	isUpdate := payload.IsUpdate()
	event := audit.EventAgentCreate
	successMsg, failMsg := MsgCreated, MsgCreateFailed
	if isUpdate {
		event = audit.EventAgentUpdate
		successMsg, failMsg = MsgSaved, MsgSaveFailed
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	result, err := e.backend.UpsertAgent(ctx, payload)
	if e.isClosed() {
		return nil, ErrClosed
	}
	if err != nil {
		e.log.Warn().Err(err).Bool("update", isUpdate).Msg("failed to save agent")
		e.audit.LogAgentOperation(event, e.id(), e.profile, false, map[string]interface{}{"error": err.Error()})
		ui.Error(e.notifier, TitleError, failMsg)
		return nil, fmt.Errorf("failed to save agent: %w", err)
	}
	if result == nil {
		result = &api.UpsertResult{ID: e.id()}
	}

	e.audit.LogAgentOperation(event, result.ID, e.profile, true, map[string]interface{}{"name": payload.Name})
	ui.Success(e.notifier, TitleSuccess, successMsg)

	if !isUpdate {
		e.navigateAway()
	}
	return result, nil
}

// Delete asks for confirmation, deletes the agent in edit mode and
// navigates to the agent list. In create mode there is nothing to delete
// and only the navigation happens.
func (e *Editor) Delete(ctx context.Context) error {
	e.mu.Lock()
	if err := e.usable(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	e.busy = true
	e.mu.Unlock()

	defer e.release(StateDeleting)

	res := e.confirmer.ConfirmDestructive(ctx, DeleteConfirmation)
	if res.Error != nil {
		return fmt.Errorf("confirmation failed: %w", res.Error)
	}
	if !res.Approved {
		return ErrDeclined
	}

	if e.agentID == nil {
		e.navigateAway()
		return nil
	}
	id := *e.agentID

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.state = StateDeleting
	e.mu.Unlock()

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err := e.backend.DeleteAgent(ctx, id)
	if e.isClosed() {
		return ErrClosed
	}
	if err != nil {
		e.log.Warn().Err(err).Int64("agent_id", id).Msg("failed to delete agent")
		e.audit.LogAgentOperation(audit.EventAgentDelete, id, e.profile, false, map[string]interface{}{"error": err.Error()})
		ui.Error(e.notifier, TitleError, MsgDeleteFailed)
		return fmt.Errorf("failed to delete agent %d: %w", id, err)
	}

	e.audit.LogAgentOperation(audit.EventAgentDelete, id, e.profile, true, nil)
	e.navigateAway()
	return nil
}

// AssignPhoneNumbers attaches numbers to the agent's twilio channel and
// replaces the draft's number list with them
func (e *Editor) AssignPhoneNumbers(ctx context.Context, numbers []agentform.PhoneNumber) error {
	channel, err := e.beginPhoneOp(agentform.ChannelTwilio)
	if err != nil {
		if errors.Is(err, ErrNoChannel) {
			ui.Error(e.notifier, TitleError, MsgAssignFailed)
		}
		return err
	}
	defer e.release(StateReady)

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.backend.AssignPhoneNumbers(ctx, api.NewTwilioAssignment(channel, numbers))
	if e.isClosed() {
		return ErrClosed
	}
	if err != nil {
		e.audit.LogAgentOperation(audit.EventPhoneAssign, e.id(), e.profile, false, map[string]interface{}{"error": err.Error()})
		ui.Error(e.notifier, TitleError, MsgAssignFailed)
		return fmt.Errorf("failed to assign phone numbers: %w", err)
	}

	e.mu.Lock()
	e.form.PhoneNumbers = append([]agentform.PhoneNumber{}, numbers...)
	e.mu.Unlock()

	e.audit.LogAgentOperation(audit.EventPhoneAssign, e.id(), e.profile, true, map[string]interface{}{"count": len(numbers)})
	ui.Success(e.notifier, TitleSuccess, MsgAssigned)
	return nil
}

// UnassignPhoneNumber asks for confirmation, then detaches one number from
// its channel and drops it from the draft
func (e *Editor) UnassignPhoneNumber(ctx context.Context, number string) error {
	e.mu.Lock()
	var target *agentform.PhoneNumber
	for _, pn := range e.form.PhoneNumbers {
		if pn.No == number {
			pn := pn
			target = &pn
			break
		}
	}
	e.mu.Unlock()
	if target == nil {
		return fmt.Errorf("phone number %s is not assigned to this agent", number)
	}

	channelType := target.Type
	if channelType == "" {
		channelType = agentform.ChannelTwilio
	}

	channel, err := e.beginPhoneOp(channelType)
	if err != nil {
		if errors.Is(err, ErrNoChannel) {
			ui.Error(e.notifier, TitleError, MsgUnassignFailed)
		}
		return err
	}
	defer e.release(StateReady)

	res := e.confirmer.ConfirmDestructive(ctx, fmt.Sprintf("Unassign phone number %s from this agent?", number))
	if res.Error != nil {
		return fmt.Errorf("confirmation failed: %w", res.Error)
	}
	if !res.Approved {
		return ErrDeclined
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.backend.DetachPhoneNumber(ctx, channel.ID, number)
	if e.isClosed() {
		return ErrClosed
	}
	if err != nil {
		e.audit.LogAgentOperation(audit.EventPhoneUnassign, e.id(), e.profile, false, map[string]interface{}{"error": err.Error()})
		ui.Error(e.notifier, TitleError, MsgUnassignFailed)
		return fmt.Errorf("failed to unassign phone number: %w", err)
	}

	e.mu.Lock()
	kept := make([]agentform.PhoneNumber, 0, len(e.form.PhoneNumbers))
	for _, pn := range e.form.PhoneNumbers {
		if pn.No != number {
			kept = append(kept, pn)
		}
	}
	e.form.PhoneNumbers = kept
	e.mu.Unlock()

	e.audit.LogAgentOperation(audit.EventPhoneUnassign, e.id(), e.profile, true, nil)
	ui.Success(e.notifier, TitleSuccess, MsgUnassigned)
	return nil
}

// beginPhoneOp claims the busy flag for a phone operation on channelType
func (e *Editor) beginPhoneOp(channelType string) (agentform.Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return agentform.Channel{}, err
	}

	switch {
	case e.busy:
		return agentform.Channel{}, ErrBusy
	case e.agentID == nil:
		return agentform.Channel{}, ErrCreateMode
	case !e.loaded:
		return agentform.Channel{}, ErrNotLoaded
	}

	channel, ok := e.form.ChannelByType(channelType)
	if !ok {
		return agentform.Channel{}, ErrNoChannel
	}
	e.busy = true
	return channel, nil
}

// Close abandons the page. In-flight requests are canceled and any
// response that still arrives is dropped.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.cancel()
}

// Form returns a snapshot of the draft
func (e *Editor) Form() agentform.FormState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.Clone()
}

// State returns the current lifecycle state
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Loading reports whether an edit-mode fetch is outstanding
func (e *Editor) Loading() bool { return e.State() == StateLoading }

// Saving reports whether a save is in flight
func (e *Editor) Saving() bool { return e.State() == StateSaving }

// Loaded reports whether the draft holds a fetched agent
func (e *Editor) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// IsEdit reports whether the editor targets an existing agent
func (e *Editor) IsEdit() bool { return e.agentID != nil }

// AgentID returns the edited agent's id, or nil in create mode
func (e *Editor) AgentID() *int64 {
	if e.agentID == nil {
		return nil
	}
	id := *e.agentID
	return &id
}

// AgentType returns the agent type the draft is shaped for
func (e *Editor) AgentType() agentform.AgentType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultType()
}

func (e *Editor) defaultType() agentform.AgentType {
	if e.agentType == "" {
		return agentform.Inbound
	}
	return e.agentType
}

func (e *Editor) id() int64 {
	if e.agentID == nil {
		return 0
	}
	return *e.agentID
}

// usable reports why the page no longer accepts operations; e.mu must be held
func (e *Editor) usable() error {
	switch {
	case e.closed:
		return ErrClosed
	case e.state == StateNavigatedAway:
		return ErrNavigatedAway
	}
	return nil
}

func (e *Editor) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// release clears the busy flag, returning to ready unless the operation
// navigated away
func (e *Editor) release(from State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if e.state == from {
		e.state = StateReady
	}
}

func (e *Editor) navigateAway() {
	e.mu.Lock()
	e.state = StateNavigatedAway
	e.mu.Unlock()
	e.navigator.Navigate(ui.RouteAgents)
}

// opContext binds ctx to the editor's lifetime
func (e *Editor) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
