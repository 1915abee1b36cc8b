package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	"github.com/Payphone-Digital/identity/internal/dto"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/Payphone-Digital/identity/internal/repository"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// EmailValidator decides whether an address may register.
type EmailValidator interface {
	Check(ctx context.Context, email string) error
}

// ClientInfo identifies the device a refresh session is issued to.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// IssuedTokens is what the handler turns into cookies and a response body.
type IssuedTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *dto.UserResponse
}

// Principal is the authenticated caller behind an access token.
type Principal struct {
	AccountID uuid.UUID
	Personas  model.PersonaSet
}

type AuthDeps struct {
	Store       repository.Store
	Hasher      *SecretHasher
	Tokens      *JWTService
	Usernames   *UsernameGenerator
	Emails      EmailValidator
	Google      IdentityVerifier
	Mail        *MailDispatcher
	FrontendURL string
}

type AuthService struct {
	store       repository.Store
	hasher      *SecretHasher
	tokens      *JWTService
	usernames   *UsernameGenerator
	emails      EmailValidator
	google      IdentityVerifier
	mail        *MailDispatcher
	frontendURL string
	now         func() time.Time
}

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		store:       deps.Store,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		usernames:   deps.Usernames,
		emails:      deps.Emails,
		google:      deps.Google,
		mail:        deps.Mail,
		frontendURL: strings.TrimRight(deps.FrontendURL, "/"),
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and sends the verification link.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Register")
	start := time.Now()
	email := normalizeEmail(req.Email)
	if err := CheckPasswordLength(req.Password); err != nil {
		return err
	}

	if err := s.emails.Check(ctx, email); err != nil {
		logger.WarnWithContext(ctx, "Registration email rejected").
			String("email", email).
			Err(err).
			Log()
		return err
	}

	if _, err := s.store.Accounts().GetByEmail(ctx, email); err == nil {
		return domainErrors.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	var passwordHash *string
	if req.Password != "" {
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return err
		}
		passwordHash = &hash
	}

	token, err := RandomHex(constants.VerificationTokenBytes)
	if err != nil {
		return err
	}
	now := s.now()
	expiresAt := now.Add(constants.VerificationTokenTTL)

	account := &model.Account{
		Email:                      email,
		PasswordHash:               passwordHash,
		Name:                       strings.TrimSpace(req.Name),
		EmailVerificationToken:     &token,
		EmailVerificationExpiresAt: &expiresAt,
		PromotionalEmails:          req.PromotionalEmails,
		Preferences:                datatypes.NewJSONType(model.DefaultPreferences()),
		CreatedAt:                  now,
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.createWithUsername(ctx, tx, account); err != nil {
			return err
		}
		switch model.InitialPersona(req.InitialRole) {
		case model.InitialPersonaExpert:
			return tx.Accounts().CreatePersona(ctx, account.ID, model.PersonaExpert)
		case model.InitialPersonaOrganization:
			return tx.Accounts().CreatePersona(ctx, account.ID, model.PersonaOrganization)
		}
		return nil
	})
	if err != nil {
		if repository.DuplicateConstraint(err) == repository.ConstraintAccountsEmail {
			return domainErrors.ErrEmailExists
		}
		logger.ErrorWithContext(ctx, "Registration failed").Err(err).Log()
		return err
	}

	logger.InfoWithContext(ctx, "Account registered").
		String("account_id", account.ID.String()).
		String("initial_role", req.InitialRole).
		Duration(time.Since(start)).
		Log()

	s.mail.DispatchVerification(ctx, s.verificationMail(account))
	return nil
}

// createWithUsername assigns a generated username and retries once with the
// fallback if a concurrent registration claimed it first. Each insert runs in
// its own savepoint so a failed attempt leaves tx usable.
func (s *AuthService) createWithUsername(ctx context.Context, tx repository.Store, account *model.Account) error {
	username, err := s.usernames.Generate(ctx, tx.Accounts())
	if err != nil {
		return err
	}
	account.Username = username

	err = insertAccount(ctx, tx, account)
	if repository.DuplicateConstraint(err) == repository.ConstraintAccountsUsername {
		logger.DebugWithContext(ctx, "Username taken on insert, using fallback").
			String("username", username).
			Log()
		account.Username = s.usernames.Fallback()
		err = insertAccount(ctx, tx, account)
	}
	return err
}

func insertAccount(ctx context.Context, tx repository.Store, account *model.Account) error {
	return tx.Transaction(ctx, func(sp repository.Store) error {
		return sp.Accounts().Create(ctx, account)
	})
}

func (s *AuthService) verificationMail(account *model.Account) VerificationMail {
	return VerificationMail{
		To:        account.Email,
		Name:      account.Name,
		Link:      s.frontendURL + "/verify-email?token=" + url.QueryEscape(*account.EmailVerificationToken),
		ExpiresAt: *account.EmailVerificationExpiresAt,
	}
}

// Login checks a password. Unknown email, missing password and wrong
// password all return ErrInvalidCredentials after the same bcrypt work.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest, client ClientInfo) (*IssuedTokens, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Login")
	if err := CheckPasswordLength(req.Password); err != nil {
		return nil, err
	}

	account, err := s.store.Accounts().GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load account: %w", err)
		}
		s.hasher.VerifyNothing(req.Password)
		return nil, domainErrors.ErrInvalidCredentials
	}

	if !account.HasPassword() {
		s.hasher.VerifyNothing(req.Password)
		return nil, domainErrors.ErrInvalidCredentials
	}
	if !s.hasher.Verify(*account.PasswordHash, req.Password) {
		logger.WarnWithContext(ctx, "Password mismatch").
			String("account_id", account.ID.String()).
			Log()
		return nil, domainErrors.ErrInvalidCredentials
	}

	if !account.CanAuthenticate() {
		return nil, domainErrors.ErrAccountDisabled
	}
	if !account.IsVerified() {
		return nil, domainErrors.ErrEmailUnverified
	}

	return s.issue(ctx, account, client)
}

// LoginWithGoogle resolves a verified Google identity by subject, then by
// email (linking it), and otherwise creates a verified account.
func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string, client ClientInfo) (*IssuedTokens, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "LoginWithGoogle")

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		logger.WarnWithContext(ctx, "Google assertion rejected").Err(err).Log()
		if domainErrors.IsDomainError(err) {
			return nil, err
		}
		return nil, domainErrors.WrapError(domainErrors.ErrAssertionInvalid, err)
	}

	var account *model.Account
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		account, err = s.resolveGoogleAccount(ctx, tx, identity)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domainErrors.WrapError(domainErrors.ErrConflict, err)
		}
		return nil, err
	}

	if !account.CanAuthenticate() {
		return nil, domainErrors.ErrAccountDisabled
	}
	return s.issue(ctx, account, client)
}

func (s *AuthService) resolveGoogleAccount(ctx context.Context, tx repository.Store, identity *ExternalIdentity) (*model.Account, error) {
	accounts := tx.Accounts()
	account, err := accounts.GetByGoogleID(ctx, identity.Subject)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	account, err = accounts.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if account.IsDeleted() {
			return account, nil
		}
		account.GoogleID = &identity.Subject
		if account.EmailVerifiedAt == nil {
			account.EmailVerifiedAt = &now
			account.EmailVerificationToken = nil
			account.EmailVerificationExpiresAt = nil
		}
		if account.AvatarURL == nil && identity.Picture != "" {
			account.AvatarURL = &identity.Picture
		}
		if err := accounts.Save(ctx, account); err != nil {
			return nil, err
		}
		logger.InfoWithContext(ctx, "Google identity linked").
			String("account_id", account.ID.String()).
			Log()
		return account, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	name := identity.Name
	if name == "" {
		name = strings.SplitN(identity.Email, "@", 2)[0]
	}
	account = &model.Account{
		Email:           identity.Email,
		GoogleID:        &identity.Subject,
		Name:            name,
		EmailVerifiedAt: &now,
		Preferences:     datatypes.NewJSONType(model.DefaultPreferences()),
		CreatedAt:       now,
	}
	if identity.Picture != "" {
		account.AvatarURL = &identity.Picture
	}
	if err := s.createWithUsername(ctx, tx, account); err != nil {
		return nil, err
	}
	logger.InfoWithContext(ctx, "Account created from Google identity").
		String("account_id", account.ID.String()).
		Log()
	return account, nil
}

// issue records the login and mints an access token plus a new refresh
// session.
func (s *AuthService) issue(ctx context.Context, account *model.Account, client ClientInfo) (*IssuedTokens, error) {
	now := s.now()
	if err := s.store.Accounts().UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	account.LastLoginAt = &now

	secret, session, err := s.newSession(account.ID, client, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create refresh session: %w", err)
	}

	personas, err := s.store.Accounts().Personas(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load personas: %w", err)
	}

	tokens, err := s.tokensFor(account, personas, secret, session)
	if err != nil {
		return nil, err
	}

	logger.LogAuth(account.ID.String(), "login", true, zap.String("client_ip", client.IP))
	return tokens, nil
}

func (s *AuthService) newSession(accountID uuid.UUID, client ClientInfo, now time.Time) (string, *model.RefreshSession, error) {
	secret, err := RandomHex(constants.RefreshSecretBytes)
	if err != nil {
		return "", nil, err
	}
	return secret, &model.RefreshSession{
		ID:        uuid.New(),
		TokenHash: HashToken(secret),
		AccountID: accountID,
		ExpiresAt: now.Add(constants.RefreshTokenTTL),
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: now,
	}, nil
}

func (s *AuthService) tokensFor(account *model.Account, personas model.PersonaSet, secret string, session *model.RefreshSession) (*IssuedTokens, error) {
	access, err := s.tokens.GenerateToken(account.ID, personas)
	if err != nil {
		return nil, err
	}
	return &IssuedTokens{
		AccessToken:      access,
		AccessExpiresAt:  s.now().Add(s.tokens.TTL()),
		RefreshToken:     secret,
		RefreshExpiresAt: session.ExpiresAt,
		User:             dto.NewUserResponse(account, personas),
	}, nil
}

// Refresh rotates a refresh secret. The old row is deleted and the new one
// inserted in one transaction; a caller that loses the race to delete the
// row gets ErrUnauthorized.
func (s *AuthService) Refresh(ctx context.Context, secret string, client ClientInfo) (*IssuedTokens, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Refresh")
	if secret == "" {
		return nil, domainErrors.ErrUnauthorized
	}
	hash := HashToken(secret)
	now := s.now()

	current, err := s.store.Sessions().FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.WarnWithContext(ctx, "Unknown refresh secret presented").Log()
			return nil, domainErrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load refresh session: %w", err)
	}

	if _, ok := current.State(now).Transition(model.EventRotate); !ok {
		if _, err := s.store.Sessions().DeleteByTokenHash(ctx, hash); err != nil {
			logger.ErrorWithContext(ctx, "Failed to delete expired session").Err(err).Log()
		}
		logger.InfoWithContext(ctx, "Refresh session expired").
			String("account_id", current.AccountID.String()).
			Log()
		return nil, domainErrors.ErrSessionExpired
	}

	var (
		account  *model.Account
		personas model.PersonaSet
		next     *model.RefreshSession
		nextRaw  string
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		deleted, err := tx.Sessions().DeleteByTokenHash(ctx, hash)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return domainErrors.ErrUnauthorized
		}

		account, err = tx.Accounts().GetByID(ctx, current.AccountID)
		if err != nil {
			return err
		}
		if !account.CanAuthenticate() {
			return domainErrors.ErrAccountDisabled
		}

		nextRaw, next, err = s.newSession(account.ID, client, now)
		if err != nil {
			return err
		}
		if err := tx.Sessions().Create(ctx, next); err != nil {
			return err
		}

		personas, err = tx.Accounts().Personas(ctx, account.ID)
		return err
	})
	if err != nil {
		if domainErrors.IsDomainError(err) {
			logger.WarnWithContext(ctx, "Refresh rejected").
				String("account_id", current.AccountID.String()).
				Err(err).
				Log()
			return nil, err
		}
		return nil, fmt.Errorf("failed to rotate refresh session: %w", err)
	}

	logger.DebugWithContext(ctx, "Refresh session rotated").
		String("account_id", account.ID.String()).
		String("personas", personas.String()).
		Log()
	return s.tokensFor(account, personas, nextRaw, next)
}

// Logout revokes the session behind secret. Unknown secrets are not an error.
func (s *AuthService) Logout(ctx context.Context, secret string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Logout")
	if secret == "" {
		return nil
	}
	deleted, err := s.store.Sessions().DeleteByTokenHash(ctx, HashToken(secret))
	if err != nil {
		return fmt.Errorf("failed to revoke refresh session: %w", err)
	}
	logger.InfoWithContext(ctx, "Logged out").Int64("sessions_revoked", deleted).Log()
	return nil
}

// VerifyEmail consumes a verification token. An expired token is left in
// place.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyEmail")
	if token == "" {
		return domainErrors.ErrInvalidToken
	}

	account, err := s.store.Accounts().GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domainErrors.ErrInvalidToken
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	now := s.now()
	if account.EmailVerificationExpiresAt == nil || !now.Before(*account.EmailVerificationExpiresAt) {
		return domainErrors.ErrTokenExpired
	}

	account.EmailVerifiedAt = &now
	account.EmailVerificationToken = nil
	account.EmailVerificationExpiresAt = nil
	if err := s.store.Accounts().Save(ctx, account); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	logger.InfoWithContext(ctx, "Email verified").String("account_id", account.ID.String()).Log()
	return nil
}

// ResendVerification reissues a token only for an existing unverified
// account. The caller sees the same outcome either way.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ResendVerification")

	account, err := s.store.Accounts().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.ErrorWithContext(ctx, "Failed to load account for resend").Err(err).Log()
		}
		return nil
	}
	if account.IsVerified() || !account.CanAuthenticate() {
		return nil
	}

	token, err := RandomHex(constants.VerificationTokenBytes)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to generate verification token").Err(err).Log()
		return nil
	}
	expiresAt := s.now().Add(constants.VerificationTokenTTL)
	account.EmailVerificationToken = &token
	account.EmailVerificationExpiresAt = &expiresAt

	if err := s.store.Accounts().Save(ctx, account); err != nil {
		logger.ErrorWithContext(ctx, "Failed to store verification token").Err(err).Log()
		return nil
	}

	s.mail.DispatchVerification(ctx, s.verificationMail(account))
	return nil
}

// DeleteSelf anonymizes the account and revokes every refresh session.
// Deleting an already deleted account succeeds.
func (s *AuthService) DeleteSelf(ctx context.Context, accountID uuid.UUID) error {
	ctx = ctxutil.WithFunction(ctx, "service", "DeleteSelf")

	var revoked int64
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		account, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if account.IsDeleted() {
			return nil
		}

		suffix, err := RandomHex(constants.AnonymizeSuffixBytes)
		if err != nil {
			return err
		}
		now := s.now()

		account.Name = constants.DeletedAccountName
		account.Email = constants.DeletedUsernameStem + suffix + "@" + constants.DeletedEmailDomain
		account.Username = constants.DeletedUsernameStem + suffix
		account.PasswordHash = nil
		account.GoogleID = nil
		account.AvatarURL = nil
		account.EmailVerificationToken = nil
		account.EmailVerificationExpiresAt = nil
		account.PasswordResetToken = nil
		account.PasswordResetExpiresAt = nil
		account.PromotionalEmails = false
		account.DeletedAt = &now

		if err := tx.Accounts().Save(ctx, account); err != nil {
			return err
		}
		revoked, err = tx.Sessions().DeleteByAccount(ctx, accountID)
		return err
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to delete account").
			String("account_id", accountID.String()).
			Err(err).
			Log()
		return fmt.Errorf("failed to delete account: %w", err)
	}

	logger.InfoWithContext(ctx, "Account deleted").
		String("account_id", accountID.String()).
		Int64("sessions_revoked", revoked).
		Log()
	return nil
}

// Authenticate validates an access token and checks the account can still
// act.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.tokens.ValidateToken(accessToken)
	if err != nil {
		return nil, domainErrors.WrapError(domainErrors.ErrUnauthorized, err)
	}
	id := claims.AccountID()
	if id == uuid.Nil {
		return nil, domainErrors.ErrUnauthorized
	}

	account, err := s.store.Accounts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domainErrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.IsDeleted() {
		return nil, domainErrors.ErrUnauthorized
	}
	if account.IsBlocked {
		return nil, domainErrors.ErrAccountDisabled
	}

	return &Principal{AccountID: id, Personas: model.PersonaSetFromRoles(claims.Roles)}, nil
}

// Me returns the descriptor of the current account with freshly derived
// personas.
func (s *AuthService) Me(ctx context.Context, accountID uuid.UUID) (*dto.UserResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Me")

	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domainErrors.ErrUnauthorized
		}
		return nil, err
	}
	if !account.CanAuthenticate() {
		return nil, domainErrors.ErrUnauthorized
	}
	personas, err := s.store.Accounts().Personas(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponse(account, personas), nil
}
