package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

const pgUniqueViolation = "23505"

// AccountRepository is the Credential Store.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*model.Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, account *model.Account) error
	Save(ctx context.Context, account *model.Account) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// Personas derives the persona set from which profile rows exist.
	Personas(ctx context.Context, id uuid.UUID) (model.PersonaSet, error)
	CreatePersona(ctx context.Context, id uuid.UUID, persona model.Persona) error
}

// RefreshSessionRepository stores hashed refresh credentials.
type RefreshSessionRepository interface {
	Create(ctx context.Context, session *model.RefreshSession) error
	FindByTokenHash(ctx context.Context, hash string) (*model.RefreshSession, error)
	// DeleteByTokenHash reports how many rows it removed. Zero means another
	// caller got there first.
	DeleteByTokenHash(ctx context.Context, hash string) (int64, error)
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store groups the repositories and runs units of work. The Store passed to
// fn is bound to the transaction; fn must only use it. Calling Transaction on
// that Store opens a savepoint: a failing inner fn rolls back only its own
// writes and the outer unit of work can continue.
type Store interface {
	Accounts() AccountRepository
	Sessions() RefreshSessionRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &DuplicateError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

// DuplicateError carries the violated constraint so callers can tell an
// email clash from a username clash.
type DuplicateError struct {
	Constraint string
	Err        error
}

func (e *DuplicateError) Error() string {
	return "duplicate key on " + e.Constraint
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func (e *DuplicateError) Unwrap() error { return e.Err }

// Constraint names from the migrations.
const (
	ConstraintAccountsEmail    = "accounts_email_lower_key"
	ConstraintAccountsUsername = "accounts_username_key"
	ConstraintAccountsGoogleID = "accounts_google_id_key"
)

// DuplicateConstraint returns the constraint behind a duplicate error, or "".
func DuplicateConstraint(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Constraint
	}
	return ""
}
