package dto

import (
	"time"

	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email             string `json:"email" binding:"required,email,max=255"`
	Password          string `json:"password" binding:"omitempty,min=8,max=72"`
	Name              string `json:"name" binding:"required,min=1,max=100"`
	PromotionalEmails bool   `json:"promotionalEmails"`
	InitialRole       string `json:"initialRole" binding:"omitempty,oneof=expert organization"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=72"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required,hexadecimal"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}

// UserResponse is the user descriptor returned after authentication. It
// never carries tokens.
type UserResponse struct {
	ID            uuid.UUID         `json:"id"`
	Email         string            `json:"email"`
	Username      string            `json:"username"`
	Name          string            `json:"name"`
	AvatarURL     *string           `json:"avatarUrl"`
	EmailVerified bool              `json:"emailVerified"`
	Preferences   model.Preferences `json:"preferences"`
	CreatedAt     time.Time         `json:"createdAt"`
	model.Roles
}

func NewUserResponse(account *model.Account, personas model.PersonaSet) *UserResponse {
	return &UserResponse{
		ID:            account.ID,
		Email:         account.Email,
		Username:      account.Username,
		Name:          account.Name,
		AvatarURL:     account.AvatarURL,
		EmailVerified: account.IsVerified(),
		Preferences:   account.Preferences.Data(),
		CreatedAt:     account.CreatedAt,
		Roles:         personas.Roles(),
	}
}
