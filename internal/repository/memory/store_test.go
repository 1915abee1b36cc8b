package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/Payphone-Digital/identity/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(email, username string) *model.Account {
	return &model.Account{Email: email, Username: username, Name: "Test"}
}

func TestEmailIsUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Accounts().Create(ctx, newAccount("Al@Example.com", "u1")))
	err := s.Accounts().Create(ctx, newAccount("al@example.COM", "u2"))

	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Equal(t, repository.ConstraintAccountsEmail, repository.DuplicateConstraint(err))

	got, err := s.Accounts().GetByEmail(ctx, "AL@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "al@example.com", got.Email)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx repository.Store) error {
		a := newAccount("a@x.com", "u1")
		require.NoError(t, tx.Accounts().Create(ctx, a))
		require.NoError(t, tx.Accounts().CreatePersona(ctx, a.ID, model.PersonaExpert))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Accounts().GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTransactionCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := newAccount("a@x.com", "u1")

	err := s.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().Create(ctx, a); err != nil {
			return err
		}
		return tx.Accounts().CreatePersona(ctx, a.ID, model.PersonaOrganization)
	})
	require.NoError(t, err)

	set, err := s.Accounts().Personas(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, set.Has(model.PersonaOrganization))
}

func TestConcurrentDeleteHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := newAccount("a@x.com", "u1")
	require.NoError(t, s.Accounts().Create(ctx, a))
	require.NoError(t, s.Sessions().Create(ctx, &model.RefreshSession{
		TokenHash: "h", AccountID: a.ID, ExpiresAt: time.Now().Add(time.Hour),
	}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Transaction(ctx, func(tx repository.Store) error {
				n, err := tx.Sessions().DeleteByTokenHash(ctx, "h")
				if err == nil && n == 1 {
					atomic.AddInt32(&wins, 1)
				}
				return err
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, 0, s.SessionCount())
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := newAccount("a@x.com", "u1")
	require.NoError(t, s.Accounts().Create(ctx, a))

	now := time.Now()
	require.NoError(t, s.Sessions().Create(ctx, &model.RefreshSession{TokenHash: "old", AccountID: a.ID, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.Sessions().Create(ctx, &model.RefreshSession{TokenHash: "new", AccountID: a.ID, ExpiresAt: now.Add(time.Hour)}))

	n, err := s.Sessions().DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Sessions().FindByTokenHash(ctx, "new")
	assert.NoError(t, err)
}

func TestNestedTransactionRollsBackOnlyItsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.Transaction(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.Accounts().Create(ctx, newAccount("outer@example.com", "outer")))

		inner := tx.Transaction(ctx, func(sp repository.Store) error {
			require.NoError(t, sp.Accounts().Create(ctx, newAccount("inner@example.com", "inner")))
			return errors.New("abort inner")
		})
		require.Error(t, inner)

		return tx.Transaction(ctx, func(sp repository.Store) error {
			return sp.Accounts().Create(ctx, newAccount("retry@example.com", "retry"))
		})
	})
	require.NoError(t, err)

	_, err = s.Accounts().GetByEmail(ctx, "outer@example.com")
	assert.NoError(t, err)
	_, err = s.Accounts().GetByEmail(ctx, "retry@example.com")
	assert.NoError(t, err)
	_, err = s.Accounts().GetByEmail(ctx, "inner@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
