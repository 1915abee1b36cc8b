package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSession is one live refresh credential. Only the SHA-256 hex of the
// raw secret is stored.
type RefreshSession struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TokenHash string    `gorm:"column:token_hash;not null;uniqueIndex"`
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	IPAddress string    `gorm:"column:ip_address"`
	UserAgent string    `gorm:"column:user_agent"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (RefreshSession) TableName() string { return "refresh_sessions" }

func (s *RefreshSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionState names the lifecycle of a refresh credential. The store only
// holds Active rows; the other states are terminal and leave no row behind.
type SessionState uint8

const (
	SessionActive SessionState = iota
	SessionRotated
	SessionExpired
	SessionRevoked
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionRotated:
		return "rotated"
	case SessionExpired:
		return "expired"
	case SessionRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// SessionEvent is an input to the refresh session state machine.
type SessionEvent uint8

const (
	EventRotate SessionEvent = iota
	EventExpire
	EventRevoke
)

// Transition returns the next state. Only Active accepts events; every other
// state is terminal, which is what makes a rotated secret unusable.
func (s SessionState) Transition(e SessionEvent) (SessionState, bool) {
	if s != SessionActive {
		return s, false
	}
	switch e {
	case EventRotate:
		return SessionRotated, true
	case EventExpire:
		return SessionExpired, true
	case EventRevoke:
		return SessionRevoked, true
	default:
		return s, false
	}
}

// State derives the state of a stored row at now.
func (s *RefreshSession) State(now time.Time) SessionState {
	if s.IsExpired(now) {
		return SessionExpired
	}
	return SessionActive
}
