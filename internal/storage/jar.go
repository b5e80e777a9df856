package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tonehq/tonectl/pkg/types"
)

// Jar is the cookie view of one profile's session. Expired cookies read as
// absent. A Jar satisfies api.Credentials.
type Jar struct {
	mu      sync.Mutex
	store   SessionStore
	profile string
	now     func() time.Time
}

// NewJar returns the jar of profile backed by store
func NewJar(store SessionStore, profile string) *Jar {
	return &Jar{store: store, profile: profile, now: time.Now}
}

// WithClock replaces the time source used for expiry checks
func (j *Jar) WithClock(now func() time.Time) *Jar {
	j.now = now
	return j
}

// Profile returns the profile this jar belongs to
func (j *Jar) Profile() string {
	return j.profile
}

// Cookie returns a live cookie by name
func (j *Jar) Cookie(name string) (types.Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	s, err := j.store.GetSession(j.profile)
	if err != nil {
		return types.Cookie{}, false
	}
	c, ok := s.Cookies[name]
	if !ok || c.Expired(j.now()) {
		return types.Cookie{}, false
	}
	return c, true
}

// Get returns a live cookie's value
func (j *Jar) Get(name string) (string, bool) {
	c, ok := j.Cookie(name)
	return c.Value, ok
}

// Set writes cookies, replacing any with the same name
func (j *Jar) Set(cookies ...types.Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	s, err := j.store.GetSession(j.profile)
	if errors.Is(err, ErrSessionNotFound) {
		s = &types.Session{Profile: j.profile, Cookies: make(map[string]types.Cookie)}
	} else if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	for _, c := range cookies {
		if c.Name == "" {
			return fmt.Errorf("cookie name cannot be empty")
		}
		s.Cookies[c.Name] = c
	}
	return j.store.PutSession(s)
}

// Remove deletes cookies by name. The session itself is dropped once empty.
func (j *Jar) Remove(names ...string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	s, err := j.store.GetSession(j.profile)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	for _, name := range names {
		delete(s.Cookies, name)
	}
	if len(s.Cookies) == 0 {
		return j.store.DeleteSession(j.profile)
	}
	return j.store.PutSession(s)
}

// AccessToken returns the bearer token, or "" when absent or expired
func (j *Jar) AccessToken() string {
	v, _ := j.Get(types.CookieAccessToken)
	return v
}

// TenantID returns the selected organization id, or ""
func (j *Jar) TenantID() string {
	v, _ := j.Get(types.CookieTenantID)
	return v
}
