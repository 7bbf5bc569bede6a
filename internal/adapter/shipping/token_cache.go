package shipping

import (
	"context"
	"sync"
	"time"
)

// tokenTTL leaves a safety buffer under the provider's ~24h validity.
const tokenTTL = 23 * time.Hour

// TokenCache holds the provider session token and serializes refresh:
// under concurrent expiry exactly one goroutine performs the login,
// the rest reuse its result.
type TokenCache struct {
	mu      sync.Mutex
	login   func(ctx context.Context) (string, error)
	token   string
	expires time.Time
	now     func() time.Time
}

func NewTokenCache(login func(ctx context.Context) (string, error)) *TokenCache {
	return &TokenCache{login: login, now: time.Now}
}

// Token returns the cached token, refreshing it when missing or past
// its TTL.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}
	tok, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = tok
	c.expires = c.now().Add(tokenTTL)
	return tok, nil
}

// Invalidate drops the cached token so the next call logs in again,
// used after a 401 from the provider.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
