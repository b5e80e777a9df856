// Package auth implements login, Google sign-in, logout and the current
// user view over a profile's cookie jar.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/storage"
	"github.com/tonehq/tonectl/internal/ui"
	"github.com/tonehq/tonectl/internal/validation"
	"github.com/tonehq/tonectl/pkg/types"
)

var (
	// ErrUserNotFound means Google sign-in succeeded but no account exists yet
	ErrUserNotFound = errors.New("user not found")

	// ErrNotLoggedIn means the jar holds no live session
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrUnknownOrganization means the user is not a member of the organization
	ErrUnknownOrganization = errors.New("organization not found in session")
)

// User-facing messages
const (
	TitleLoginOK     = "Login Successful"
	MsgLoginOK       = "Welcome back!"
	TitleLoginFailed = "Login Failed"
	MsgLoginRetry    = "Please try again."
)

// Backend is the slice of the API client auth needs
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	AccessTokenByFirebase(ctx context.Context, idToken string) (*api.LoginResponse, error)
}

// User is the signed-in user as recorded at login
type User struct {
	ID           string              `json:"id" yaml:"id"`
	Email        string              `json:"email" yaml:"email"`
	Username     string              `json:"username,omitempty" yaml:"username,omitempty"`
	FirstName    string              `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName     string              `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Role         string              `json:"role,omitempty" yaml:"role,omitempty"`
	Organization *types.Organization `json:"organization,omitempty" yaml:"organization,omitempty"`
	ExpiresAt    time.Time           `json:"expires_at" yaml:"expires_at"`
}

// loginData is the subset of the stored login payload read back
type loginData struct {
	UserID        api.FlexibleID       `json:"user_id"`
	Email         string               `json:"email"`
	Username      string               `json:"username"`
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	Organizations []types.Organization `json:"organizations"`
}

// Option configures a Service
type Option func(*Service)

// WithNotifier sets where messages go
func WithNotifier(n ui.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithNavigator sets what happens on redirect
func WithNavigator(n ui.Navigator) Option {
	return func(s *Service) { s.navigator = n }
}

// WithAudit records logins and logouts
func WithAudit(l *audit.Logger) Option {
	return func(s *Service) { s.audit = l }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Sub("auth")
		}
	}
}

// Service runs the authentication flows for one profile
type Service struct {
	backend   Backend
	jar       *storage.Jar
	validator *validation.Validator
	notifier  ui.Notifier
	navigator ui.Navigator
	audit     *audit.Logger
	log       *logging.Logger
}

// NewService creates an auth service persisting into jar
func NewService(backend Backend, jar *storage.Jar, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		jar:       jar,
		validator: validation.NewValidator(),
		notifier:  &ui.Recorder{},
		navigator: &ui.RouteRecorder{},
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates with email and password and stores the session
func (s *Service) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	if err := s.validator.ValidateLogin(email, password); err != nil {
		ui.Error(s.notifier, TitleLoginFailed, err.Error())
		return nil, err
	}

	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("login failed")
		s.audit.LogAuth(false, email, s.jar.Profile(), map[string]interface{}{
			"method": "password",
			"reason": api.Detail(err, err.Error()),
		})
		ui.Error(s.notifier, TitleLoginFailed, api.Detail(err, MsgLoginRetry))
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if err := s.SaveLogin(resp); err != nil {
		ui.Error(s.notifier, TitleLoginFailed, MsgLoginRetry)
		return nil, err
	}

	s.audit.LogAuth(true, email, s.jar.Profile(), map[string]interface{}{"method": "password"})
	ui.Success(s.notifier, TitleLoginOK, MsgLoginOK)
	s.navigator.Navigate(ui.RouteHome)
	return resp, nil
}

// SignInWithFirebase exchanges a Google sign-in id token for a session.
// An unknown user is sent to signup prefilled with email and name, and
// ErrUserNotFound is returned.
func (s *Service) SignInWithFirebase(ctx context.Context, idToken, email, displayName string) (*api.LoginResponse, error) {
	resp, err := s.backend.AccessTokenByFirebase(ctx, idToken)
	if err != nil {
		if api.IsUserNotFound(err) {
			s.audit.LogAuth(false, email, s.jar.Profile(), map[string]interface{}{
				"method": "firebase",
				"reason": api.DetailUserNotFound,
			})
			s.navigator.Navigate(SignupRoute(email, displayName, idToken))
			return nil, ErrUserNotFound
		}
		s.log.Warn().Err(err).Msg("firebase sign-in failed")
		s.audit.LogAuth(false, email, s.jar.Profile(), map[string]interface{}{"method": "firebase"})
		ui.Error(s.notifier, TitleLoginFailed, api.Detail(err, MsgLoginRetry))
		return nil, fmt.Errorf("firebase sign-in failed: %w", err)
	}

	if err := s.SaveLogin(resp); err != nil {
		ui.Error(s.notifier, TitleLoginFailed, MsgLoginRetry)
		return nil, err
	}

	s.audit.LogAuth(true, resp.Email, s.jar.Profile(), map[string]interface{}{"method": "firebase"})
	s.navigator.Navigate(ui.RouteHome)
	return resp, nil
}

// SaveLogin writes the four session cookies, all expiring with the access
// token's exp claim
func (s *Service) SaveLogin(resp *api.LoginResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return fmt.Errorf("login response carries no access token")
	}

	expires, err := TokenExpiry(resp.AccessToken)
	if err != nil {
		return err
	}

	tenant := ""
	if len(resp.Organizations) > 0 {
		tenant = strconv.FormatInt(resp.Organizations[0].ID, 10)
	}

	raw := resp.Raw
	if len(raw) == 0 {
		raw, err = json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to encode login data: %w", err)
		}
	}

	err = s.jar.Set(
		types.Cookie{Name: types.CookieAccessToken, Value: resp.AccessToken, Expires: expires},
		types.Cookie{Name: types.CookieTenantID, Value: tenant, Expires: expires},
		types.Cookie{Name: types.CookieLoginData, Value: string(raw), Expires: expires},
		types.Cookie{Name: types.CookieUserID, Value: resp.UserID.String(), Expires: expires},
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.log.Debug().Str("profile", s.jar.Profile()).Time("expires", expires).Msg("session saved")
	return nil
}

// Logout clears the session cookies and returns to the login page
func (s *Service) Logout() error {
	email := ""
	if u, err := s.CurrentUser(); err == nil {
		email = u.Email
	}

	err := s.jar.Remove(types.SessionCookies...)
	s.audit.LogSession(audit.EventLogout, email, s.jar.Profile(), err == nil, nil)
	s.navigator.Navigate(ui.RouteLogin)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Authenticated reports whether a live access token is stored
func (s *Service) Authenticated() bool {
	return s.jar.AccessToken() != ""
}

// CurrentUser reads the user back from the stored login payload. The
// role comes from the organization matching the tenant cookie, or the
// first organization when no tenant is selected.
func (s *Service) CurrentUser() (*User, error) {
	if !s.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	data, err := s.loginData()
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:        data.UserID.String(),
		Email:     data.Email,
		Username:  data.Username,
		FirstName: data.FirstName,
		LastName:  data.LastName,
	}
	if c, ok := s.jar.Cookie(types.CookieAccessToken); ok {
		user.ExpiresAt = c.Expires
	}

	if org := currentOrganization(data.Organizations, s.jar.TenantID()); org != nil {
		user.Organization = org
		user.Role = org.Role
	}
	return user, nil
}

// Organizations lists the organizations recorded at login
func (s *Service) Organizations() ([]types.Organization, error) {
	if !s.Authenticated() {
		return nil, ErrNotLoggedIn
	}
	data, err := s.loginData()
	if err != nil {
		return nil, err
	}
	return data.Organizations, nil
}

// SwitchOrganization points the tenant cookie at another organization the
// user belongs to
func (s *Service) SwitchOrganization(orgID int64) error {
	orgs, err := s.Organizations()
	if err != nil {
		return err
	}
	for _, org := range orgs {
		if org.ID == orgID {
			current, ok := s.jar.Cookie(types.CookieTenantID)
			if !ok {
				return ErrNotLoggedIn
			}
			current.Value = strconv.FormatInt(orgID, 10)
			return s.jar.Set(current)
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownOrganization, orgID)
}

func (s *Service) loginData() (*loginData, error) {
	raw, ok := s.jar.Get(types.CookieLoginData)
	if !ok {
		return nil, ErrNotLoggedIn
	}
	var data loginData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode stored login data: %w", err)
	}
	return &data, nil
}

func currentOrganization(orgs []types.Organization, tenant string) *types.Organization {
	if len(orgs) == 0 {
		return nil
	}
	if tenant != "" {
		id, err := strconv.ParseInt(tenant, 10, 64)
		if err != nil {
			return nil
		}
		for _, org := range orgs {
			if org.ID == id {
				org := org
				return &org
			}
		}
		return nil
	}
	org := orgs[0]
	return &org
}

// TokenExpiry reads the exp claim of an access token. The signature is not
// checked; the backend does that on every request.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode access token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("access token carries no exp claim")
	}
	return exp.Time, nil
}

// SignupRoute is where an unknown Google user is sent
func SignupRoute(email, name, idToken string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("name", name)
	q.Set("firebase_uid", idToken)
	q.Set("firebase_signup", "true")
	return ui.RouteSignup + "?" + q.Encode()
}
