package constants

import "time"

// Field Length Limits
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MinNameLength     = 1
	MaxNameLength     = 100
	MaxEmailLength    = 255
)

// Token lifetimes
const (
	AccessTokenTTL       = 15 * time.Minute
	RefreshTokenTTL      = 7 * 24 * time.Hour
	VerificationTokenTTL = 24 * time.Hour
)

// Random secret sizes in bytes, before hex encoding
const (
	RefreshSecretBytes     = 40
	VerificationTokenBytes = 32
	AnonymizeSuffixBytes   = 8

	// MaxPasswordBytes is bcrypt's input limit. Binding tags count runes.
	MaxPasswordBytes = 72
)

// Anonymization placeholders
const (
	DeletedAccountName  = "Deleted User"
	DeletedEmailDomain  = "deleted.invalid"
	DeletedUsernameStem = "deleted-"
)
