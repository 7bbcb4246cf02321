package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	secret = []byte("super-secret-super-secret-super-secret-super-secret-super-secret!")
	fixed  = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
)

func newSigner(at time.Time) *Signer {
	s := NewSigner(secret, "gophauth", 15*time.Minute)
	s.now = func() time.Time { return at }
	return s
}

func account() *models.Account {
	a := models.NewAccount("Ana", "ana@x.com", "", nil, fixed)
	a.Role = models.RoleAdmin
	return a
}

func TestIssueAccessToken_ClaimSet(t *testing.T) {
	t.Parallel()

	a := account()
	tok, err := newSigner(fixed).IssueAccessToken(a)
	require.NoError(t, err)

	claims := &Claims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)

	assert.Equal(t, "HS512", parsed.Header["alg"])
	assert.Equal(t, a.ID, claims.Subject)
	assert.Equal(t, "ana@x.com", claims.Email)
	assert.Equal(t, "Admin", claims.Role)
	assert.Equal(t, "gophauth", claims.Issuer)
	assert.True(t, fixed.Equal(claims.IssuedAt.Time))
	assert.True(t, fixed.Add(15*time.Minute).Equal(claims.ExpiresAt.Time))
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
}

func TestIssueAccessToken_UniqueJTI(t *testing.T) {
	t.Parallel()

	s := newSigner(fixed)
	a := account()

	first, err := s.IssueAccessToken(a)
	require.NoError(t, err)
	second, err := s.IssueAccessToken(a)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestIssueAndParse_Success(t *testing.T) {
	t.Parallel()

	s := newSigner(time.Now())
	a := account()

	tok, err := s.IssueAccessToken(a)
	require.NoError(t, err)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, a.ID, claims.Subject)
	assert.Equal(t, "Admin", claims.Role)
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	tok, err := newSigner(fixed).IssueAccessToken(account())
	require.NoError(t, err)

	_, err = newSigner(fixed.Add(16 * time.Minute)).Parse(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	valid, err := newSigner(fixed).IssueAccessToken(account())
	require.NoError(t, err)

	otherIssuer := NewSigner(secret, "someone-else", 15*time.Minute)
	otherIssuer.now = func() time.Time { return fixed }
	foreign, err := otherIssuer.IssueAccessToken(account())
	require.NoError(t, err)

	hs256 := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "x", Issuer: "gophauth", ExpiresAt: jwt.NewNumericDate(fixed.Add(time.Hour)),
	}})
	weakAlg, err := hs256.SignedString(secret)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "x", Issuer: "gophauth",
	}})
	noExpiry, err := noExp.SignedString(secret)
	require.NoError(t, err)

	wrongKey := NewSigner([]byte("another-key"), "gophauth", time.Minute)
	wrongKey.now = func() time.Time { return fixed }

	tests := []struct {
		name   string
		signer *Signer
		token  string
	}{
		{name: "malformed", signer: newSigner(fixed), token: "not.a.jwt"},
		{name: "wrong key", signer: wrongKey, token: valid},
		{name: "wrong issuer", signer: newSigner(fixed), token: foreign},
		{name: "hs256", signer: newSigner(fixed), token: weakAlg},
		{name: "no expiry", signer: newSigner(fixed), token: noExpiry},
		{name: "tampered", signer: newSigner(fixed), token: valid[:len(valid)-2] + flip(valid[len(valid)-2:])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.signer.Parse(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidToken), "got %v", err)
		})
	}
}

func flip(s string) string {
	if strings.HasPrefix(s, "A") {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}
