package common

// ErrorCode identifies a domain failure. The set is closed: every code has
// exactly one exported sentinel below.
type ErrorCode int

const (
	CodeInvalidCredentials ErrorCode = iota + 1
	CodeUnsupportedProvider
	CodeInvalidExternalToken
	CodeInvalidRefreshToken
	CodeExpiredRefreshToken
	CodeInvalidVerificationToken
	CodeInvalidResetToken
	CodeExpiredResetToken
	CodeDecryptionFailed
	CodeAccountNotFound
	CodeIncorrectPassword
	CodeExternalAccount
	CodeValidation
)

var codeNames = map[ErrorCode]string{
	CodeInvalidCredentials:       "invalid_credentials",
	CodeUnsupportedProvider:      "unsupported_provider",
	CodeInvalidExternalToken:     "invalid_external_token",
	CodeInvalidRefreshToken:      "invalid_refresh_token",
	CodeExpiredRefreshToken:      "expired_refresh_token",
	CodeInvalidVerificationToken: "invalid_verification_token",
	CodeInvalidResetToken:        "invalid_reset_token",
	CodeExpiredResetToken:        "expired_reset_token",
	CodeDecryptionFailed:         "decryption_failed",
	CodeAccountNotFound:          "account_not_found",
	CodeIncorrectPassword:        "incorrect_password",
	CodeExternalAccount:          "external_account",
	CodeValidation:               "validation_failed",
}

// String returns the stable snake_case name of the code.
func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "unknown"
}

// DomainError is a client-facing failure of an authentication or profile
// flow. Message is safe to show to the caller.
type DomainError struct {
	Code    ErrorCode
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a different message. The copy
// still matches e with errors.Is.
func (e *DomainError) WithMessage(msg string) *DomainError {
	return &DomainError{Code: e.Code, Message: msg}
}

var (
	ErrInvalidCredentials       = &DomainError{Code: CodeInvalidCredentials, Message: "Credenciales inválidas."}
	ErrUnsupportedProvider      = &DomainError{Code: CodeUnsupportedProvider, Message: "Proveedor no soportado."}
	ErrInvalidExternalToken     = &DomainError{Code: CodeInvalidExternalToken, Message: "Token externo inválido."}
	ErrInvalidRefreshToken      = &DomainError{Code: CodeInvalidRefreshToken, Message: "Refresh token inválido."}
	ErrExpiredRefreshToken      = &DomainError{Code: CodeExpiredRefreshToken, Message: "Refresh token expirado."}
	ErrInvalidVerificationToken = &DomainError{Code: CodeInvalidVerificationToken, Message: "Token de verificación inválido."}
	ErrInvalidResetToken        = &DomainError{Code: CodeInvalidResetToken, Message: "El token de restablecimiento no es válido."}
	ErrExpiredResetToken        = &DomainError{Code: CodeExpiredResetToken, Message: "El token de restablecimiento ha expirado."}
	ErrDecryptionFailed         = &DomainError{Code: CodeDecryptionFailed, Message: "No se pudo descifrar el dato."}
	ErrAccountNotFound          = &DomainError{Code: CodeAccountNotFound, Message: "Usuario no encontrado."}
	ErrIncorrectPassword        = &DomainError{Code: CodeIncorrectPassword, Message: "La contraseña actual es incorrecta."}
	ErrExternalAccount          = &DomainError{Code: CodeExternalAccount, Message: "No puedes cambiar la contraseña de una cuenta de inicio de sesión externo."}
	ErrValidation               = &DomainError{Code: CodeValidation, Message: "Datos inválidos."}
)
