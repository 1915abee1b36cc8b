package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/Payphone-Digital/identity/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AdminSeed defines the bootstrap administrator.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

func (s AdminSeed) Enabled() bool {
	return strings.TrimSpace(s.Email) != "" && s.Password != ""
}

// PasswordHasher hashes the seed password.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SeedAdmin creates a verified account holding the Admin persona. It is a
// no-op when the email is already registered.
func SeedAdmin(ctx context.Context, store repository.Store, hasher PasswordHasher, seed AdminSeed) (bool, error) {
	if !seed.Enabled() {
		return false, nil
	}

	_, err := store.Accounts().GetByEmail(ctx, seed.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(seed.Password)
	if err != nil {
		return false, err
	}

	now := time.Now()
	id := uuid.New()
	account := &model.Account{
		ID:              id,
		Email:           seed.Email,
		Username:        "admin-" + strings.ReplaceAll(id.String(), "-", "")[:8],
		PasswordHash:    &hash,
		Name:            seed.Name,
		EmailVerifiedAt: &now,
		Preferences:     datatypes.NewJSONType(model.DefaultPreferences()),
	}

	err = store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().Create(ctx, account); err != nil {
			return err
		}
		return tx.Accounts().CreatePersona(ctx, account.ID, model.PersonaAdmin)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
