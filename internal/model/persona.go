package model

import "strings"

// Persona is one capability profile an account can hold.
type Persona uint8

const (
	PersonaUser Persona = 1 << iota
	PersonaExpert
	PersonaOrganization
	PersonaAdmin
)

func (p Persona) String() string {
	switch p {
	case PersonaUser:
		return "user"
	case PersonaExpert:
		return "expert"
	case PersonaOrganization:
		return "organization"
	case PersonaAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// PersonaSet is derived from which persona rows exist. Every account holds
// PersonaUser.
type PersonaSet uint8

func NewPersonaSet(personas ...Persona) PersonaSet {
	s := PersonaSet(PersonaUser)
	for _, p := range personas {
		s |= PersonaSet(p)
	}
	return s
}

func (s PersonaSet) Has(p Persona) bool { return s&PersonaSet(p) != 0 }

func (s PersonaSet) With(p Persona) PersonaSet { return s | PersonaSet(p) }

// List returns the members in declaration order.
func (s PersonaSet) List() []Persona {
	var out []Persona
	for _, p := range []Persona{PersonaUser, PersonaExpert, PersonaOrganization, PersonaAdmin} {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s PersonaSet) String() string {
	names := make([]string, 0, 4)
	for _, p := range s.List() {
		names = append(names, p.String())
	}
	return strings.Join(names, ",")
}

// Roles is the role-flag vector carried in access tokens and user responses.
type Roles struct {
	IsExpert bool `json:"isExpert"`
	IsOrg    bool `json:"isOrg"`
	IsAdmin  bool `json:"isAdmin"`
}

func (s PersonaSet) Roles() Roles {
	return Roles{
		IsExpert: s.Has(PersonaExpert),
		IsOrg:    s.Has(PersonaOrganization),
		IsAdmin:  s.Has(PersonaAdmin),
	}
}

// PersonaSetFromRoles rebuilds a set from token claims.
func PersonaSetFromRoles(r Roles) PersonaSet {
	s := NewPersonaSet()
	if r.IsExpert {
		s = s.With(PersonaExpert)
	}
	if r.IsOrg {
		s = s.With(PersonaOrganization)
	}
	if r.IsAdmin {
		s = s.With(PersonaAdmin)
	}
	return s
}

// InitialPersona is the optional persona requested at registration.
type InitialPersona string

const (
	InitialPersonaNone         InitialPersona = ""
	InitialPersonaExpert       InitialPersona = "expert"
	InitialPersonaOrganization InitialPersona = "organization"
)
