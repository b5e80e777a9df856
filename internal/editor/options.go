package editor

import (
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/ui"
)

// Option configures an Editor
type Option func(*Editor)

// WithNotifier sets where success and error messages go
func WithNotifier(n ui.Notifier) Option {
	return func(e *Editor) {
		e.notifier = n
	}
}

// WithNavigator sets what happens when the page would navigate away
func WithNavigator(n ui.Navigator) Option {
	return func(e *Editor) {
		e.navigator = n
	}
}

// WithConfirmer sets who answers the delete and unassign prompts
func WithConfirmer(c Confirmer) Option {
	return func(e *Editor) {
		e.confirmer = c
	}
}

// WithAudit records every backend operation in the audit trail
func WithAudit(l *audit.Logger) Option {
	return func(e *Editor) {
		e.audit = l
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(l *logging.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l.Sub("editor")
		}
	}
}

// WithProfile names the session profile in audit events
func WithProfile(profile string) Option {
	return func(e *Editor) {
		e.profile = profile
	}
}
