package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Preferences holds per-account notification and display settings.
type Preferences struct {
	EmailNotifications bool   `json:"emailNotifications"`
	Theme              string `json:"theme"`
}

func DefaultPreferences() Preferences {
	return Preferences{EmailNotifications: true, Theme: "system"}
}

// Account is the identity root. DeletedAt is a plain column rather than
// gorm.DeletedAt so lookups still see soft-deleted rows and can reject them.
type Account struct {
	ID                         uuid.UUID                       `gorm:"column:id;type:uuid;primaryKey"`
	Email                      string                          `gorm:"column:email;not null"`
	Username                   string                          `gorm:"column:username;not null;uniqueIndex"`
	PasswordHash               *string                         `gorm:"column:password_hash"`
	GoogleID                   *string                         `gorm:"column:google_id;uniqueIndex"`
	Name                       string                          `gorm:"column:name;not null"`
	AvatarURL                  *string                         `gorm:"column:avatar_url"`
	LastLoginAt                *time.Time                      `gorm:"column:last_login_at"`
	DeletedAt                  *time.Time                      `gorm:"column:deleted_at"`
	EmailVerifiedAt            *time.Time                      `gorm:"column:email_verified_at"`
	EmailVerificationToken     *string                         `gorm:"column:email_verification_token;uniqueIndex"`
	EmailVerificationExpiresAt *time.Time                      `gorm:"column:email_verification_expires_at"`
	PasswordResetToken         *string                         `gorm:"column:password_reset_token;uniqueIndex"`
	PasswordResetExpiresAt     *time.Time                      `gorm:"column:password_reset_expires_at"`
	IsBlocked                  bool                            `gorm:"column:is_blocked;not null;default:false"`
	PromotionalEmails          bool                            `gorm:"column:promotional_emails;not null;default:false"`
	Preferences                datatypes.JSONType[Preferences] `gorm:"column:preferences;type:jsonb;not null"`
	CreatedAt                  time.Time                       `gorm:"column:created_at;not null"`
	UpdatedAt                  time.Time                       `gorm:"column:updated_at;not null"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) IsDeleted() bool { return a.DeletedAt != nil }

func (a *Account) IsVerified() bool { return a.EmailVerifiedAt != nil }

func (a *Account) HasPassword() bool { return a.PasswordHash != nil && *a.PasswordHash != "" }

// CanAuthenticate reports whether the account may receive new credentials.
func (a *Account) CanAuthenticate() bool { return !a.IsDeleted() && !a.IsBlocked }

// ExpertProfile is the Expert persona. It exists at most once per account.
type ExpertProfile struct {
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	Headline  string    `gorm:"column:headline"`
	Bio       string    `gorm:"column:bio"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (ExpertProfile) TableName() string { return "expert_profiles" }

// OrganizationProfile is the Organization persona.
type OrganizationProfile struct {
	AccountID   uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	DisplayName string    `gorm:"column:display_name"`
	Website     string    `gorm:"column:website"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (OrganizationProfile) TableName() string { return "organization_profiles" }

type AdminProfile struct {
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (AdminProfile) TableName() string { return "admin_profiles" }
