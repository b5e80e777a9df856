package settings

import (
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/ui"
)

// Option configures a Service
type Option func(*Service)

// WithNotifier sets where success and error messages go
func WithNotifier(n ui.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithConfirmer sets who answers the delete prompt
func WithConfirmer(c Confirmer) Option {
	return func(s *Service) {
		s.confirmer = c
	}
}

// WithAudit records every change in the audit trail
func WithAudit(l *audit.Logger) Option {
	return func(s *Service) {
		s.audit = l
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Sub("settings")
		}
	}
}

// WithProfile names the session profile in audit events
func WithProfile(profile string) Option {
	return func(s *Service) {
		s.profile = profile
	}
}

// WithRole sets the session's role in the organization
func WithRole(role string) Option {
	return func(s *Service) {
		s.role = role
	}
}
