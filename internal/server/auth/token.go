package auth

import "github.com/dmitrijs2005/gophauth/internal/common"

// TokenGenerator produces opaque random tokens. The caller decides what the
// token is for and when it expires.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokenGenerator returns 64 bytes from crypto/rand, base64 encoded.
type RandomTokenGenerator struct{}

func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{}
}

func (RandomTokenGenerator) Generate() (string, error) {
	return common.MakeRandBase64String(common.OpaqueTokenSize)
}
