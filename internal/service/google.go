package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/Payphone-Digital/identity/config"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/pkg/circuit"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// ExternalIdentity is the verified content of a third-party assertion.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (*ExternalIdentity, error)
}

// flexBool accepts both true and "true"; Google has emitted either form.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

type googleClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier checks Google ID tokens against Google's published keys.
// The key set is refreshed in the background; tokens naming an unknown key
// id trigger at most one refetch per configured interval.
type GoogleVerifier struct {
	clientID string
	issuers  []string
	keys     keyfunc.Keyfunc
	now      func() time.Time
}

// NewGoogleVerifier fetches the key set through client guarded by breaker.
// Background refresh stops when ctx ends. A nil client gets one bounded by
// the configured fetch timeout.
func NewGoogleVerifier(ctx context.Context, cfg config.GoogleConfig, client *http.Client, breaker *circuit.Breaker) (*GoogleVerifier, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	refresh := cfg.KeysRefresh
	if refresh <= 0 {
		refresh = time.Hour
	}
	unknownKID := cfg.UnknownKIDInterval
	if unknownKID <= 0 {
		unknownKID = 5 * time.Minute
	}

	keys, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSURL}, keyfunc.Override{
		Client:            circuit.Guard(client, breaker),
		HTTPTimeout:       cfg.FetchTimeout,
		RefreshInterval:   refresh,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(unknownKID), 1),
		RateLimitWaitMax:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up google key set: %w", err)
	}

	return &GoogleVerifier{
		clientID: cfg.ClientID,
		issuers:  cfg.Issuers,
		keys:     keys,
		now:      time.Now,
	}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*ExternalIdentity, error) {
	if v.clientID == "" {
		return nil, domainErrors.WrapError(domainErrors.ErrAssertionInvalid, errors.New("google client id not configured"))
	}

	claims := &googleClaims{}
	_, err := jwt.ParseWithClaims(assertion, claims, v.keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, domainErrors.WrapError(domainErrors.ErrAssertionInvalid, err)
	}

	if !v.validIssuer(claims.Issuer) {
		return nil, domainErrors.WrapError(domainErrors.ErrAssertionInvalid, fmt.Errorf("unexpected issuer %q", claims.Issuer))
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, domainErrors.WrapError(domainErrors.ErrAssertionInvalid, errors.New("assertion lacks subject or email"))
	}
	if !claims.EmailVerified {
		return nil, domainErrors.WrapError(domainErrors.ErrAssertionInvalid, errors.New("email not verified by provider"))
	}

	return &ExternalIdentity{
		Subject: claims.Subject,
		Email:   strings.ToLower(claims.Email),
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

func (v *GoogleVerifier) validIssuer(iss string) bool {
	for _, allowed := range v.issuers {
		if iss == allowed {
			return true
		}
	}
	return false
}
