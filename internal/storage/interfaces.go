package storage

import (
	"errors"

	"github.com/tonehq/tonectl/pkg/types"
)

// ErrSessionNotFound is returned when a profile has no stored session
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists one cookie set per profile
type SessionStore interface {
	GetSession(profile string) (*types.Session, error)
	PutSession(session *types.Session) error
	DeleteSession(profile string) error
	ListSessions() []string
	SessionExists(profile string) bool
}
