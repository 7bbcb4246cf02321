package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the credential aggregate. Nullable columns are pointers; the
// reset and refresh token pairs are only ever changed together through the
// methods below.
type Account struct {
	ID                     string
	Email                  string
	Name                   string
	Phone                  string
	TaxID                  *string
	PasswordSurrogate      *string
	Role                   Role
	AvatarURL              *string
	CreatedAt              time.Time
	EmailVerified          bool
	EmailVerificationToken *string
	PasswordResetToken     *string
	PasswordResetExpiresAt *time.Time
	RefreshToken           *string
	RefreshTokenExpiresAt  *time.Time
}

// NewAccount returns an unverified local account with a fresh ID.
func NewAccount(name, email, phone string, taxID *string, now time.Time) *Account {
	return &Account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Phone:     phone,
		TaxID:     taxID,
		Role:      RoleUser,
		CreatedAt: now.UTC(),
	}
}

// NewExternalAccount returns an account created on first federated sign-in.
// It has no password and its email is trusted as verified.
func NewExternalAccount(name, email, avatarURL string, now time.Time) *Account {
	a := NewAccount(name, email, "", nil, now)
	a.EmailVerified = true
	if avatarURL != "" {
		a.AvatarURL = &avatarURL
	}
	return a
}

// HasPassword reports whether the account can sign in with a password.
// Federated-only accounts have no surrogate.
func (a *Account) HasPassword() bool {
	return a.PasswordSurrogate != nil && *a.PasswordSurrogate != ""
}

func (a *Account) SetPasswordSurrogate(surrogate string) {
	a.PasswordSurrogate = &surrogate
}

func (a *Account) SetEmailVerificationToken(token string) {
	a.EmailVerificationToken = &token
}

// MarkEmailVerified flips the verified flag and consumes the pending token.
// The flag never goes back to false.
func (a *Account) MarkEmailVerified() {
	a.EmailVerified = true
	a.EmailVerificationToken = nil
}

func (a *Account) SetPasswordResetToken(token string, expiresAt time.Time) {
	exp := expiresAt.UTC()
	a.PasswordResetToken = &token
	a.PasswordResetExpiresAt = &exp
}

func (a *Account) ClearPasswordResetToken() {
	a.PasswordResetToken = nil
	a.PasswordResetExpiresAt = nil
}

// PasswordResetExpired reports whether the reset token is past its expiry.
// A token expiring exactly at now is still valid. Missing state counts as expired.
func (a *Account) PasswordResetExpired(now time.Time) bool {
	return a.PasswordResetExpiresAt == nil || a.PasswordResetExpiresAt.Before(now)
}

func (a *Account) SetRefreshToken(token string, expiresAt time.Time) {
	exp := expiresAt.UTC()
	a.RefreshToken = &token
	a.RefreshTokenExpiresAt = &exp
}

func (a *Account) ClearRefreshToken() {
	a.RefreshToken = nil
	a.RefreshTokenExpiresAt = nil
}

// RefreshTokenExpired uses the same boundary as PasswordResetExpired.
func (a *Account) RefreshTokenExpired(now time.Time) bool {
	return a.RefreshTokenExpiresAt == nil || a.RefreshTokenExpiresAt.Before(now)
}

func (a *Account) SetAvatarURL(url string) {
	a.AvatarURL = &url
}
