// Package common defines shared sentinel errors and the closed set of domain
// errors returned by the authentication flows. Callers should use errors.Is
// to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Unique-constraint violations, both matching ErrorAlreadyExists.
	ErrEmailTaken = fmt.Errorf("email %w", ErrorAlreadyExists)
	ErrTaxIDTaken = fmt.Errorf("tax id %w", ErrorAlreadyExists)

	// Access token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
