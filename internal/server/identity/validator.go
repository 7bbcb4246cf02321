// Package identity verifies identity assertions issued by external providers
// such as Google Sign-In.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned by Registry.Lookup for unregistered providers.
var ErrUnknownProvider = errors.New("unknown identity provider")

// Claim is a verified identity asserted by an external provider.
type Claim struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Validator verifies an ID token. Any returned error means the token must be
// treated as invalid; callers must not distinguish between reasons.
type Validator interface {
	Validate(ctx context.Context, idToken string) (*Claim, error)
}

// Registry maps provider names to validators. Names are case-insensitive.
// Adding a provider means registering another Validator.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

func (r *Registry) Register(provider string, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[strings.ToLower(provider)] = v
}

func (r *Registry) Lookup(provider string) (Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return v, nil
}
