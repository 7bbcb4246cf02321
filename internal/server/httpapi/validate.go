package httpapi

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

const (
	maxNameLength     = 100
	minPasswordLength = 6
	phoneDigits       = 10
)

// Mexican RFC: 3 letters for companies or 4 for individuals, a yymmdd date
// and a 3 character homoclave.
var rfcPattern = regexp.MustCompile(`^[A-Z&Ñ]{3,4}\d{6}[A-Z0-9]{3}$`)

func invalid(msg string) error {
	return common.ErrValidation.WithMessage(msg)
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return invalid("El nombre completo es obligatorio.")
	case utf8.RuneCountInString(name) > maxNameLength:
		return invalid("El nombre no puede exceder los 100 caracteres.")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("El email es obligatorio.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("El formato del email no es válido.")
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return invalid("La contraseña es obligatoria.")
	case utf8.RuneCountInString(password) < minPasswordLength:
		return invalid("La contraseña debe tener al menos 6 caracteres.")
	}
	return nil
}

// normalizePhone keeps only the digits; exactly ten must remain.
func normalizePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", invalid("El número de teléfono es obligatorio.")
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) != phoneDigits {
		return "", invalid("El teléfono debe tener 10 dígitos.")
	}
	return digits, nil
}

// normalizeTaxID upper-cases a present tax id and checks it is an RFC.
// Blank means absent.
func normalizeTaxID(taxID *string) (*string, error) {
	if taxID == nil || strings.TrimSpace(*taxID) == "" {
		return nil, nil
	}
	v := strings.ToUpper(strings.TrimSpace(*taxID))
	if !rfcPattern.MatchString(v) {
		return nil, invalid("El RFC no tiene un formato válido.")
	}
	return &v, nil
}

func required(value, msg string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(msg)
	}
	return nil
}
