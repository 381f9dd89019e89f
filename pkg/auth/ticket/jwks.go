package ticket

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// jwksCache caches RSA public keys fetched from a JWKS endpoint. An
// unknown kid forces a refresh, so key rotation is picked up before the
// TTL expires.
type jwksCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	ttl       time.Duration
	url       string
	client    *http.Client
}

func newJWKSCache(url string, ttl time.Duration, client *http.Client) *jwksCache {
	return &jwksCache{
		keys:   make(map[string]*rsa.PublicKey),
		ttl:    ttl,
		url:    url,
		client: client,
	}
}

func (c *jwksCache) lookup(kid string) (*rsa.PublicKey, bool) {
	key, ok := c.keys[kid]
	return key, ok && time.Since(c.fetchedAt) < c.ttl
}

func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.lookup(kid)
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := c.lookup(kid); ok {
		return key, nil
	}
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key %q not found in JWKS", kid)
}

// refresh must be called with the write lock held.
func (c *jwksCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, ok := k.Key.(*rsa.PublicKey)
		if !ok {
			slog.Debug("skipping non-RSA JWKS key", "kid", k.KeyID)
			continue
		}
		keys[k.KeyID] = pub
	}

	c.keys = keys
	c.fetchedAt = time.Now()
	slog.Debug("JWKS cache refreshed", "keys", len(keys), "url", c.url)
	return nil
}
