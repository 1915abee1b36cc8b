package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPersonaSetAlwaysHoldsUser(t *testing.T) {
	s := NewPersonaSet()
	assert.True(t, s.Has(PersonaUser))
	assert.False(t, s.Has(PersonaExpert))
	assert.Equal(t, Roles{}, s.Roles())
	assert.Equal(t, "user", s.String())
}

func TestPersonaSetRoles(t *testing.T) {
	tests := []struct {
		name     string
		personas []Persona
		want     Roles
	}{
		{"expert", []Persona{PersonaExpert}, Roles{IsExpert: true}},
		{"org", []Persona{PersonaOrganization}, Roles{IsOrg: true}},
		{"admin", []Persona{PersonaAdmin}, Roles{IsAdmin: true}},
		{"all", []Persona{PersonaExpert, PersonaOrganization, PersonaAdmin}, Roles{true, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPersonaSet(tt.personas...)
			assert.Equal(t, tt.want, s.Roles())
			assert.Equal(t, s, PersonaSetFromRoles(s.Roles()))
		})
	}
}

func TestPersonaSetList(t *testing.T) {
	s := NewPersonaSet(PersonaAdmin, PersonaExpert)
	assert.Equal(t, []Persona{PersonaUser, PersonaExpert, PersonaAdmin}, s.List())
	assert.Equal(t, "user,expert,admin", s.String())
}

func TestSessionStateTransitions(t *testing.T) {
	next, ok := SessionActive.Transition(EventRotate)
	assert.True(t, ok)
	assert.Equal(t, SessionRotated, next)

	next, ok = SessionActive.Transition(EventExpire)
	assert.True(t, ok)
	assert.Equal(t, SessionExpired, next)

	next, ok = SessionActive.Transition(EventRevoke)
	assert.True(t, ok)
	assert.Equal(t, SessionRevoked, next)

	for _, terminal := range []SessionState{SessionRotated, SessionExpired, SessionRevoked} {
		for _, e := range []SessionEvent{EventRotate, EventExpire, EventRevoke} {
			got, ok := terminal.Transition(e)
			assert.False(t, ok, "%s accepted event %d", terminal, e)
			assert.Equal(t, terminal, got)
		}
	}
}

func TestRefreshSessionState(t *testing.T) {
	now := time.Now()
	s := &RefreshSession{ExpiresAt: now.Add(time.Minute)}
	assert.Equal(t, SessionActive, s.State(now))
	assert.Equal(t, SessionExpired, s.State(now.Add(time.Minute)))
}

func TestAccountFlags(t *testing.T) {
	hash := "x"
	now := time.Now()
	a := &Account{PasswordHash: &hash}
	assert.True(t, a.HasPassword())
	assert.True(t, a.CanAuthenticate())
	assert.False(t, a.IsVerified())

	a.IsBlocked = true
	assert.False(t, a.CanAuthenticate())

	a.IsBlocked = false
	a.DeletedAt = &now
	assert.False(t, a.CanAuthenticate())
}
