package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormSessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Create(ctx context.Context, session *model.RefreshSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Create(session).Error)
}

func (r *GormSessionRepository) FindByTokenHash(ctx context.Context, hash string) (*model.RefreshSession, error) {
	var session model.RefreshSession
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&session).Error; err != nil {
		return nil, translateError(err)
	}
	return &session, nil
}

func (r *GormSessionRepository) DeleteByTokenHash(ctx context.Context, hash string) (int64, error) {
	res := r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&model.RefreshSession{})
	return res.RowsAffected, translateError(res.Error)
}

func (r *GormSessionRepository) DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&model.RefreshSession{})
	return res.RowsAffected, translateError(res.Error)
}

func (r *GormSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "DeleteExpiredSessions")

	start := time.Now()
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.RefreshSession{})
	if res.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to delete expired sessions").Err(res.Error).Log()
		return 0, translateError(res.Error)
	}

	logger.DebugWithContext(ctx, "Expired sessions deleted").
		Int64("deleted", res.RowsAffected).
		Duration(time.Since(start)).
		Log()
	return res.RowsAffected, nil
}
