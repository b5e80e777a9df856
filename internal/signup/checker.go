// Package signup holds the signup page logic: the debounced
// organization-existence check and the submit flow it gates.
package signup

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/pkg/types"
)

const (
	// DefaultDebounce is how long the name must stay unchanged before a check
	DefaultDebounce = 500 * time.Millisecond

	// MinOrgNameLength is the shortest trimmed name worth a lookup
	MinOrgNameLength = 2
)

// OrgLookup asks the backend whether an organization name is taken
type OrgLookup interface {
	CheckOrganizationExists(ctx context.Context, name string) (*api.OrganizationCheck, error)
}

// CheckerOption configures an OrgChecker
type CheckerOption func(*OrgChecker)

// WithDebounce overrides DefaultDebounce. Zero looks up on the next tick.
func WithDebounce(d time.Duration) CheckerOption {
	return func(c *OrgChecker) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithCheckerLogger sets the diagnostic logger
func WithCheckerLogger(l *logging.Logger) CheckerOption {
	return func(c *OrgChecker) {
		if l != nil {
			c.log = l.Sub("orgcheck")
		}
	}
}

// OrgChecker debounces keystrokes in the organization name field and
// remembers the organization the latest surviving name matched.
// Lookup failures count as no match.
type OrgChecker struct {
	lookup OrgLookup
	delay  time.Duration
	log    *logging.Logger

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	pending  bool
	idle     chan struct{} // closed while nothing is pending
	inflight context.CancelFunc
	existing *types.Organization
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrgChecker creates a checker backed by lookup
func NewOrgChecker(lookup OrgLookup, opts ...CheckerOption) *OrgChecker {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	c := &OrgChecker{
		lookup: lookup,
		delay:  DefaultDebounce,
		log:    logging.Nop(),
		idle:   idle,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Input records a new value of the name field. Only the last value
// standing for the debounce delay is looked up.
func (c *OrgChecker) Input(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.markPending()
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen, name) })
}

func (c *OrgChecker) fire(gen uint64, name string) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}

	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < MinOrgNameLength {
		c.existing = nil
		c.markIdle()
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight = cancel
	c.mu.Unlock()

	c.log.Debug().Str("name", trimmed).Msg("checking organization")
	res, err := c.lookup.CheckOrganizationExists(ctx, trimmed)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.inflight = nil

	switch {
	case err != nil:
		c.log.Debug().Err(err).Str("name", trimmed).Msg("organization check failed, treating as no match")
		c.existing = nil
	case res != nil && res.Exists && res.Organization != nil:
		org := *res.Organization
		c.existing = &org
	default:
		c.existing = nil
	}
	c.markIdle()
}

// Check feeds name and waits for its result
func (c *OrgChecker) Check(ctx context.Context, name string) (*types.Organization, error) {
	c.Input(name)
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Existing(), nil
}

// Wait blocks until no timer or lookup is outstanding
func (c *OrgChecker) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Existing returns the matched organization, or nil
func (c *OrgChecker) Existing() *types.Organization {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.existing == nil {
		return nil
	}
	org := *c.existing
	return &org
}

// Pending reports whether a check is scheduled or running
func (c *OrgChecker) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Close stops the timer and drops any lookup still running
func (c *OrgChecker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.cancel()
	c.markIdle()
}

func (c *OrgChecker) markPending() {
	if !c.pending {
		c.pending = true
		c.idle = make(chan struct{})
	}
}

func (c *OrgChecker) markIdle() {
	if c.pending {
		c.pending = false
		close(c.idle)
	}
}
