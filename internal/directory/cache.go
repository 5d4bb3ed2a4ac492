package directory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lawdesk/kioskd/internal/session"
)

// Cached wraps a Validator with an expiring LRU over successful
// lookups. Rejections are never cached, so a member added to the
// registry is picked up on the next attempt.
type Cached struct {
	next  Validator
	cache *expirable.LRU[Credentials, session.Profile]
}

// NewCached creates a caching wrapper holding up to size profiles for
// ttl.
func NewCached(next Validator, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[Credentials, session.Profile](size, nil, ttl),
	}
}

// Lookup serves from cache when possible.
func (c *Cached) Lookup(ctx context.Context, creds Credentials) (session.Profile, error) {
	if profile, ok := c.cache.Get(creds); ok {
		return profile, nil
	}

	profile, err := c.next.Lookup(ctx, creds)
	if err != nil {
		return session.Profile{}, err
	}

	c.cache.Add(creds, profile)
	return profile, nil
}
