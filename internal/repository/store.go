package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormStore is the PostgreSQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Accounts() AccountRepository { return NewAccountRepository(s.db) }

func (s *GormStore) Sessions() RefreshSessionRepository { return NewSessionRepository(s.db) }

// Transaction commits when fn returns nil and rolls back otherwise.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
