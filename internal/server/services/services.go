// Package services contains server-side business logic: the authentication
// flows in AuthService and the signed-in account flows in ProfileService.
package services

import (
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// User-facing messages. Register and ForgotPassword return the same message
// whether or not the account exists.
const (
	MsgRegistered      = "Si el correo es válido, recibirás un enlace de confirmación."
	MsgResetRequested  = "Si existe una cuenta con ese correo, se ha enviado un enlace para restablecer la contraseña."
	MsgEmailVerified   = "Email verificado exitosamente."
	MsgPasswordReset   = "Contraseña restablecida exitosamente."
	MsgPasswordChanged = "Contraseña actualizada exitosamente."
	MsgLoggedOut       = "Sesión cerrada correctamente."
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Result is the outcome of flows that only report a message.
type Result struct {
	Message string
}

// PasswordCipher is the reversible cipher that produces password surrogates.
type PasswordCipher interface {
	Encrypt(plaintext string) string
	Decrypt(ciphertext string) (string, error)
}

type AccessTokenIssuer interface {
	IssueAccessToken(a *models.Account) (string, error)
}

type IdentityProviders interface {
	Lookup(provider string) (identity.Validator, error)
}
