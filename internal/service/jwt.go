package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the signed access-token payload.
type AccessClaims struct {
	ID    string      `json:"id"`
	Roles model.Roles `json:"roles"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

func NewJWTService(secretKey, issuer string, ttl time.Duration) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *JWTService) TTL() time.Duration { return s.ttl }

// GenerateToken signs an HS256 access token for the account.
func (s *JWTService) GenerateToken(accountID uuid.UUID, personas model.PersonaSet) (string, error) {
	now := s.now()
	claims := AccessClaims{
		ID:    accountID.String(),
		Roles: personas.Roles(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

// ValidateToken checks signature, algorithm, issuer and expiry.
func (s *JWTService) ValidateToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	return claims, nil
}

// AccountID returns the parsed account id of validated claims.
func (c *AccessClaims) AccountID() uuid.UUID {
	id, _ := uuid.Parse(c.ID)
	return id
}
