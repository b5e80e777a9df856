package signup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/ui"
	"github.com/tonehq/tonectl/internal/validation"
)

// ErrOrganizationExists blocks a signup whose organization name is taken
var ErrOrganizationExists = errors.New("organization already exists")

// User-facing messages
const (
	TitleOrgExists = "Organization Exists"
	MsgOrgExists   = "An organization with this name already exists. Please choose a different name or request access."
	TitleCreated   = "Account Created"
	MsgCreated     = "Please check your email for verification"
	TitleFailed    = "Sign Up Failed"
	MsgRetry       = "Please try again."
)

// Backend is the slice of the API client signup needs
type Backend interface {
	Signup(ctx context.Context, req api.SignupRequest) (*api.SignupResponse, error)
	SignupWithFirebase(ctx context.Context, idToken, email string, profile map[string]interface{}) (*api.LoginResponse, error)
}

// SessionSaver persists the session a Firebase signup returns
type SessionSaver interface {
	SaveLogin(resp *api.LoginResponse) error
}

// Form is the submitted signup form. FirebaseToken is set when the user
// arrived from Google sign-in; the password is then not used.
type Form struct {
	Email         string
	Username      string
	Password      string
	OrgName       string
	FirebaseToken string
}

// FlowOption configures a Flow
type FlowOption func(*Flow)

// WithNotifier sets where messages go
func WithNotifier(n ui.Notifier) FlowOption {
	return func(f *Flow) { f.notifier = n }
}

// WithNavigator sets what happens on redirect
func WithNavigator(n ui.Navigator) FlowOption {
	return func(f *Flow) { f.navigator = n }
}

// WithSessions stores the Firebase signup session
func WithSessions(s SessionSaver) FlowOption {
	return func(f *Flow) { f.sessions = s }
}

// WithAudit records signup attempts
func WithAudit(l *audit.Logger) FlowOption {
	return func(f *Flow) { f.audit = l }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *logging.Logger) FlowOption {
	return func(f *Flow) {
		if l != nil {
			f.log = l.Sub("signup")
		}
	}
}

// Flow submits the signup form
type Flow struct {
	backend   Backend
	checker   *OrgChecker
	sessions  SessionSaver
	validator *validation.Validator
	notifier  ui.Notifier
	navigator ui.Navigator
	audit     *audit.Logger
	log       *logging.Logger
}

// NewFlow creates a signup flow. checker may be nil when no organization
// name is collected.
func NewFlow(backend Backend, checker *OrgChecker, opts ...FlowOption) *Flow {
	f := &Flow{
		backend:   backend,
		checker:   checker,
		validator: validation.NewValidator(),
		notifier:  &ui.Recorder{},
		navigator: &ui.RouteRecorder{},
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit registers the account. A matched organization blocks the submit
// with a warning and no network call.
func (f *Flow) Submit(ctx context.Context, form Form) error {
	form.Email = strings.TrimSpace(form.Email)
	form.Username = strings.TrimSpace(form.Username)
	form.OrgName = strings.TrimSpace(form.OrgName)

	if f.checker != nil {
		if err := f.checker.Wait(ctx); err != nil {
			return err
		}
		if org := f.checker.Existing(); org != nil {
			ui.Warning(f.notifier, TitleOrgExists, MsgOrgExists)
			f.audit.LogSession(audit.EventSignup, form.Email, "", false, map[string]interface{}{
				"reason":       "organization exists",
				"organization": org.Name,
			})
			return fmt.Errorf("%w: %s", ErrOrganizationExists, org.Name)
		}
	}

	if form.FirebaseToken != "" {
		return f.submitFirebase(ctx, form)
	}
	return f.submitPassword(ctx, form)
}

func (f *Flow) submitPassword(ctx context.Context, form Form) error {
	err := f.validator.ValidateStruct(validation.SignupInput{
		Email:    form.Email,
		Username: form.Username,
		Password: form.Password,
		OrgName:  form.OrgName,
	})
	if err != nil {
		return f.fail(form, err, err.Error())
	}

	req := api.SignupRequest{
		Email:    form.Email,
		Username: form.Username,
		Password: form.Password,
		Profile:  map[string]interface{}{"name": form.Username},
	}
	if form.OrgName != "" {
		org := form.OrgName
		req.OrgName = &org
	}

	if _, err := f.backend.Signup(ctx, req); err != nil {
		return f.fail(form, err, api.Detail(err, MsgRetry))
	}

	f.succeed(form, "password")
	f.navigator.Navigate(CheckEmailRoute(form.Username, form.Email))
	return nil
}

func (f *Flow) submitFirebase(ctx context.Context, form Form) error {
	err := f.validator.ValidateStruct(validation.FirebaseSignupInput{
		Email:         form.Email,
		Username:      form.Username,
		FirebaseToken: form.FirebaseToken,
		OrgName:       form.OrgName,
	})
	if err != nil {
		return f.fail(form, err, err.Error())
	}

	resp, err := f.backend.SignupWithFirebase(ctx, form.FirebaseToken, form.Email, map[string]interface{}{"name": form.Username})
	if err != nil {
		return f.fail(form, err, api.Detail(err, MsgRetry))
	}
	if f.sessions != nil {
		if err := f.sessions.SaveLogin(resp); err != nil {
			return f.fail(form, err, "Could not save the new session")
		}
	}

	f.succeed(form, "firebase")
	f.navigator.Navigate(ui.RouteHome)
	return nil
}

func (f *Flow) succeed(form Form, method string) {
	f.log.Info().Str("email", form.Email).Str("method", method).Msg("account created")
	f.audit.LogSession(audit.EventSignup, form.Email, "", true, map[string]interface{}{"method": method})
	ui.Success(f.notifier, TitleCreated, MsgCreated)
}

func (f *Flow) fail(form Form, err error, detail string) error {
	f.log.Warn().Err(err).Str("email", form.Email).Msg("signup failed")
	f.audit.LogSession(audit.EventSignup, form.Email, "", false, map[string]interface{}{"error": err.Error()})
	ui.Error(f.notifier, TitleFailed, detail)
	return fmt.Errorf("signup failed: %w", err)
}

// CheckEmailRoute is where a password signup lands
func CheckEmailRoute(username, email string) string {
	return fmt.Sprintf("%s?username=%s&email=%s", ui.RouteCheckEmail, url.QueryEscape(username), url.QueryEscape(email))
}
