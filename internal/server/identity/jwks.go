package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// HTTPClient is the subset of *http.Client used to fetch key sets.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

const (
	maxJWKSBody = 1 << 20

	// minRefetchInterval bounds how often tokens carrying an unknown kid can
	// make the cache hit the key endpoint.
	minRefetchInterval = time.Minute
)

// jwksCache keeps the RSA keys of one JWKS endpoint. An unknown kid forces a
// refetch so provider key rotation is picked up before the TTL runs out, but
// at most once per minRefetchInterval.
type jwksCache struct {
	url    string
	ttl    time.Duration
	client HTTPClient
	now    func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	attemptedAt time.Time
}

func newJWKSCache(url string, ttl time.Duration, client HTTPClient) *jwksCache {
	return &jwksCache{url: url, ttl: ttl, client: client, now: time.Now}
}

func (c *jwksCache) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	k, ok := c.keys[kid]
	fresh := c.keys != nil && c.now().Sub(c.fetchedAt) < c.ttl
	throttled := c.throttledLocked()
	c.mu.RUnlock()

	if ok && (fresh || throttled) {
		return k, nil
	}

	// concurrent misses share one request; it must outlive a caller that gives up
	fetchCtx := context.WithoutCancel(ctx)
	if _, err, _ := c.group.Do(c.url, func() (any, error) { return nil, c.refresh(fetchCtx) }); err != nil {
		return nil, err
	}

	c.mu.RLock()
	k, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key %q not found in jwks", kid)
	}
	return k, nil
}

func (c *jwksCache) throttledLocked() bool {
	return !c.attemptedAt.IsZero() && c.now().Sub(c.attemptedAt) < minRefetchInterval
}

// refresh replaces the cached key set unless another caller refreshed it
// within minRefetchInterval. Failed attempts count towards the interval.
func (c *jwksCache) refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.throttledLocked() {
		c.mu.Unlock()
		return nil
	}
	c.attemptedAt = c.now()
	c.mu.Unlock()

	keys, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return nil
}

type jwksResponse struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (c *jwksCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("jwks request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}

	var set jwksResponse
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
