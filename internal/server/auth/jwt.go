// Package auth issues and verifies access tokens and generates the opaque
// tokens used for refresh, email verification and password reset.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the claim set of an access token: sub, jti, iss, iat and exp from
// the registered claims plus the account email and role name.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Signer issues HS512 access tokens with a shared key.
type Signer struct {
	key      []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

// NewSigner returns a Signer that stamps tokens with issuer and expires them
// after validity.
func NewSigner(key []byte, issuer string, validity time.Duration) *Signer {
	return &Signer{key: key, issuer: issuer, validity: validity, now: time.Now}
}

// IssueAccessToken signs a new access token for the account. Every token gets
// a fresh random jti.
func (s *Signer) IssueAccessToken(a *models.Account) (string, error) {
	now := s.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
		Email: a.Email,
		Role:  a.Role.String(),
	})

	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return tokenString, nil
}

// Parse verifies signature, algorithm, issuer and expiry of an access token.
// Expired tokens yield common.ErrTokenExpired; any other failure matches
// common.ErrInvalidToken.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
