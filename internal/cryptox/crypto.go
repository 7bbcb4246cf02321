// Package cryptox implements the reversible cipher used for stored password
// surrogates: AES-256 in CBC mode with PKCS#7 padding and a fixed key/IV
// pair, emitting standard base64 text.
//
// A fixed IV makes equal plaintexts encrypt to equal ciphertexts, and the
// scheme is reversible by design. Both are known weaknesses kept for
// compatibility with surrogates already stored by earlier deployments.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	KeySize = 32
	IVSize  = aes.BlockSize
)

var (
	// ErrInvalidKey is returned by NewCipher for a key or IV of the wrong size.
	ErrInvalidKey = errors.New("cryptox: invalid key material")

	// ErrDecryptionFailed covers malformed base64, bad length and bad padding.
	ErrDecryptionFailed = errors.New("cryptox: decryption failed")
)

// Cipher encrypts and decrypts single strings. It is safe for concurrent use.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// NewCipher builds a Cipher from a 32-byte key and a 16-byte IV.
func NewCipher(key, iv []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidKey, IVSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Cipher{block: block, iv: bytes.Clone(iv)}, nil
}

// NewCipherFromStrings is NewCipher over the UTF-8 bytes of key and iv, the
// form in which they arrive from configuration.
func NewCipherFromStrings(key, iv string) (*Cipher, error) {
	return NewCipher([]byte(key), []byte(iv))
}

// Encrypt returns the base64 ciphertext of plaintext. The empty string is
// returned unchanged.
func (c *Cipher) Encrypt(plaintext string) string {
	if plaintext == "" {
		return plaintext
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. The empty string is returned unchanged; any other
// input that is not a valid ciphertext under this key yields ErrDecryptionFailed.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return ciphertext, nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecryptionFailed)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(plain), nil
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
		}
	}
	return b[:len(b)-n], nil
}
