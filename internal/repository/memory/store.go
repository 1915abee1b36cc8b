// Package memory is an in-process Store used by tests and local runs
// without PostgreSQL. It enforces the same unique constraints as the
// migrations and serialises transactions.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/Payphone-Digital/identity/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	accounts map[uuid.UUID]model.Account
	personas map[uuid.UUID]model.PersonaSet
	sessions map[string]model.RefreshSession
}

func newState() *state {
	return &state{
		accounts: make(map[uuid.UUID]model.Account),
		personas: make(map[uuid.UUID]model.PersonaSet),
		sessions: make(map[string]model.RefreshSession),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.personas {
		c.personas[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	return c
}

// Store implements repository.Store.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) Accounts() repository.AccountRepository { return &accounts{s} }

func (s *Store) Sessions() repository.RefreshSessionRepository { return &sessions{s} }

// Transaction holds the store lock for the whole of fn and works on a copy
// that replaces the live state only when fn succeeds.
func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		sp := &Store{mu: &sync.Mutex{}, st: s.st.clone(), inTx: true}
		if err := fn(sp); err != nil {
			return err
		}
		s.st = sp.st
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: &sync.Mutex{}, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// SessionCount is a test helper.
func (s *Store) SessionCount() int {
	defer s.lock()()
	return len(s.st.sessions)
}

// SessionsFor lists live sessions of one account.
func (s *Store) SessionsFor(accountID uuid.UUID) []model.RefreshSession {
	defer s.lock()()
	var out []model.RefreshSession
	for _, sess := range s.st.sessions {
		if sess.AccountID == accountID {
			out = append(out, sess)
		}
	}
	return out
}

type accounts struct{ s *Store }

func (r *accounts) find(match func(*model.Account) bool) (*model.Account, error) {
	defer r.s.lock()()
	for _, a := range r.s.st.accounts {
		if match(&a) {
			found := a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *accounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	defer r.s.lock()()
	a, ok := r.s.st.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *accounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(a *model.Account) bool { return strings.ToLower(a.Email) == email })
}

func (r *accounts) GetByGoogleID(_ context.Context, googleID string) (*model.Account, error) {
	return r.find(func(a *model.Account) bool { return a.GoogleID != nil && *a.GoogleID == googleID })
}

func (r *accounts) GetByVerificationToken(_ context.Context, token string) (*model.Account, error) {
	return r.find(func(a *model.Account) bool {
		return a.EmailVerificationToken != nil && *a.EmailVerificationToken == token
	})
}

func (r *accounts) UsernameExists(_ context.Context, username string) (bool, error) {
	defer r.s.lock()()
	for _, a := range r.s.st.accounts {
		if a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *accounts) Create(_ context.Context, account *model.Account) error {
	defer r.s.lock()()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if _, exists := r.s.st.accounts[account.ID]; exists {
		return &repository.DuplicateError{Constraint: "accounts_pkey"}
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	if err := r.checkUnique(account); err != nil {
		return err
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	r.s.st.accounts[account.ID] = *account
	return nil
}

func (r *accounts) Save(_ context.Context, account *model.Account) error {
	defer r.s.lock()()
	if err := r.checkUnique(account); err != nil {
		return err
	}
	account.UpdatedAt = time.Now()
	r.s.st.accounts[account.ID] = *account
	return nil
}

// checkUnique mirrors the unique indexes. Caller holds the lock.
func (r *accounts) checkUnique(account *model.Account) error {
	for id, other := range r.s.st.accounts {
		if id == account.ID {
			continue
		}
		switch {
		case strings.EqualFold(other.Email, account.Email):
			return &repository.DuplicateError{Constraint: repository.ConstraintAccountsEmail}
		case other.Username == account.Username:
			return &repository.DuplicateError{Constraint: repository.ConstraintAccountsUsername}
		case equalPtr(other.GoogleID, account.GoogleID):
			return &repository.DuplicateError{Constraint: repository.ConstraintAccountsGoogleID}
		case equalPtr(other.EmailVerificationToken, account.EmailVerificationToken):
			return &repository.DuplicateError{Constraint: "accounts_email_verification_token_key"}
		case equalPtr(other.PasswordResetToken, account.PasswordResetToken):
			return &repository.DuplicateError{Constraint: "accounts_password_reset_token_key"}
		}
	}
	return nil
}

func equalPtr(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r *accounts) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	defer r.s.lock()()
	a, ok := r.s.st.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.LastLoginAt = &at
	r.s.st.accounts[id] = a
	return nil
}

func (r *accounts) Personas(_ context.Context, id uuid.UUID) (model.PersonaSet, error) {
	defer r.s.lock()()
	if set, ok := r.s.st.personas[id]; ok {
		return set, nil
	}
	return model.NewPersonaSet(), nil
}

func (r *accounts) CreatePersona(_ context.Context, id uuid.UUID, persona model.Persona) error {
	defer r.s.lock()()
	if _, ok := r.s.st.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	set, ok := r.s.st.personas[id]
	if !ok {
		set = model.NewPersonaSet()
	}
	if persona != model.PersonaUser && set.Has(persona) {
		return &repository.DuplicateError{Constraint: persona.String() + "_profiles_pkey"}
	}
	r.s.st.personas[id] = set.With(persona)
	return nil
}

type sessions struct{ s *Store }

func (r *sessions) Create(_ context.Context, session *model.RefreshSession) error {
	defer r.s.lock()()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if _, exists := r.s.st.sessions[session.TokenHash]; exists {
		return &repository.DuplicateError{Constraint: "refresh_sessions_token_hash_key"}
	}
	if _, ok := r.s.st.accounts[session.AccountID]; !ok {
		return repository.ErrNotFound
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	r.s.st.sessions[session.TokenHash] = *session
	return nil
}

func (r *sessions) FindByTokenHash(_ context.Context, hash string) (*model.RefreshSession, error) {
	defer r.s.lock()()
	sess, ok := r.s.st.sessions[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (r *sessions) DeleteByTokenHash(_ context.Context, hash string) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.sessions[hash]; !ok {
		return 0, nil
	}
	delete(r.s.st.sessions, hash)
	return 1, nil
}

func (r *sessions) DeleteByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	defer r.s.lock()()
	var n int64
	for hash, sess := range r.s.st.sessions {
		if sess.AccountID == accountID {
			delete(r.s.st.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (r *sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for hash, sess := range r.s.st.sessions {
		if sess.IsExpired(now) {
			delete(r.s.st.sessions, hash)
			n++
		}
	}
	return n, nil
}
