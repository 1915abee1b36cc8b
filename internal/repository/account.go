package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormAccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "GetByID")
	return r.first(ctx, "id = ?", id)
}

func (r *GormAccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "GetByEmail")
	return r.first(ctx, "lower(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *GormAccountRepository) GetByGoogleID(ctx context.Context, googleID string) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "GetByGoogleID")
	return r.first(ctx, "google_id = ?", googleID)
}

func (r *GormAccountRepository) GetByVerificationToken(ctx context.Context, token string) (*model.Account, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "GetByVerificationToken")
	return r.first(ctx, "email_verification_token = ?", token)
}

func (r *GormAccountRepository) first(ctx context.Context, query string, arg interface{}) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").Err(err).Log()
		return nil, err
	}

	start := time.Now()
	var account model.Account
	err := translateError(r.db.WithContext(ctx).Where(query, arg).First(&account).Error)
	duration := time.Since(start)

	switch {
	case errors.Is(err, ErrNotFound):
		logger.DebugWithContext(ctx, "Account not found").Duration(duration).Log()
		return nil, err
	case err != nil:
		logger.ErrorWithContext(ctx, "Failed to load account").Duration(duration).Err(err).Log()
		return nil, err
	}

	logger.DebugWithContext(ctx, "Account retrieved").
		String("account_id", account.ID.String()).
		Duration(duration).
		Log()
	return &account, nil
}

func (r *GormAccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *GormAccountRepository) Create(ctx context.Context, account *model.Account) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "CreateAccount")

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))

	start := time.Now()
	err := translateError(r.db.WithContext(ctx).Create(account).Error)
	if err != nil {
		logger.WarnWithContext(ctx, "Failed to create account").
			String("constraint", DuplicateConstraint(err)).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "Account created").
		String("account_id", account.ID.String()).
		Duration(time.Since(start)).
		Log()
	return nil
}

// Save writes every column, so nil pointer fields are stored as NULL.
func (r *GormAccountRepository) Save(ctx context.Context, account *model.Account) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "SaveAccount")

	start := time.Now()
	err := translateError(r.db.WithContext(ctx).Save(account).Error)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to save account").
			String("account_id", account.ID.String()).
			Duration(time.Since(start)).
			Err(err).
			Log()
	}
	return err
}

func (r *GormAccountRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Update("last_login_at", at)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type personaRow struct {
	Expert       bool
	Organization bool
	Admin        bool
}

func (r *GormAccountRepository) Personas(ctx context.Context, id uuid.UUID) (model.PersonaSet, error) {
	var row personaRow
	err := r.db.WithContext(ctx).Raw(`SELECT
		EXISTS (SELECT 1 FROM expert_profiles WHERE account_id = @id) AS expert,
		EXISTS (SELECT 1 FROM organization_profiles WHERE account_id = @id) AS organization,
		EXISTS (SELECT 1 FROM admin_profiles WHERE account_id = @id) AS admin`,
		map[string]interface{}{"id": id},
	).Scan(&row).Error
	if err != nil {
		return 0, translateError(err)
	}

	set := model.NewPersonaSet()
	if row.Expert {
		set = set.With(model.PersonaExpert)
	}
	if row.Organization {
		set = set.With(model.PersonaOrganization)
	}
	if row.Admin {
		set = set.With(model.PersonaAdmin)
	}
	return set, nil
}

func (r *GormAccountRepository) CreatePersona(ctx context.Context, id uuid.UUID, persona model.Persona) error {
	db := r.db.WithContext(ctx)
	var err error
	switch persona {
	case model.PersonaExpert:
		err = db.Create(&model.ExpertProfile{AccountID: id}).Error
	case model.PersonaOrganization:
		err = db.Create(&model.OrganizationProfile{AccountID: id}).Error
	case model.PersonaAdmin:
		err = db.Create(&model.AdminProfile{AccountID: id}).Error
	case model.PersonaUser:
		return nil
	}
	return translateError(err)
}
