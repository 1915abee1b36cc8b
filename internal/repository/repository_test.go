package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE lower\(email\) = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "name"}).
			AddRow(id.String(), "al@example.com", "brave-red-fox", "Al"))

	account, err := repo.GetByEmail(context.Background(), "  Al@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)
	assert.Equal(t, "brave-red-fox", account.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonasSingleQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"expert", "organization", "admin"}).
			AddRow(true, false, true))

	set, err := repo.Personas(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.Roles{IsExpert: true, IsAdmin: true}, set.Roles())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByTokenHashReportsRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(`DELETE FROM "refresh_sessions" WHERE token_hash = \$1`).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "refresh_sessions" WHERE token_hash = \$1`).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.DeleteByTokenHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteByTokenHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(`DELETE FROM "refresh_sessions" WHERE expires_at <= \$1`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), ErrNotFound)

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: ConstraintAccountsEmail}
	err := translateError(fmt.Errorf("insert: %w", pgErr))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, ConstraintAccountsEmail, DuplicateConstraint(err))

	other := errors.New("connection reset")
	assert.Equal(t, other, translateError(other))
	assert.Equal(t, "", DuplicateConstraint(other))
}

func TestNestedTransactionUsesSavepoint(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT sp\d+`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "refresh_sessions" WHERE token_hash = \$1`).
		WithArgs("first").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ConstraintAccountsUsername})
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT sp\d+`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SAVEPOINT sp\d+`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "refresh_sessions" WHERE token_hash = \$1`).
		WithArgs("second").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Transaction(ctx, func(tx Store) error {
		first := tx.Transaction(ctx, func(sp Store) error {
			_, err := sp.Sessions().DeleteByTokenHash(ctx, "first")
			return err
		})
		require.Equal(t, ConstraintAccountsUsername, DuplicateConstraint(first))

		return tx.Transaction(ctx, func(sp Store) error {
			_, err := sp.Sessions().DeleteByTokenHash(ctx, "second")
			return err
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
