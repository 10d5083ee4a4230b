package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/profile-analytics/db"
	"github.com/brettboylen/profile-analytics/models"
)

const (
	// DefaultTTL is the freshness window of a cached analysis
	DefaultTTL = 30 * time.Minute

	keyPrefix = "analysis:"
)

// Cache stores analysis results keyed by normalized username
type Cache struct {
	store db.Store
	ttl   time.Duration
	now   func() time.Time
	log   *logrus.Logger
}

// New creates a cache over store. A non-positive ttl uses DefaultTTL.
func New(store db.Store, ttl time.Duration, log *logrus.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log,
	}
}

// WithClock replaces the clock used for freshness checks
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func key(username string) string {
	return keyPrefix + username
}

// Get returns the cached result for username. Unless allowStale is set,
// entries older than the freshness window are treated as absent.
func (c *Cache) Get(ctx context.Context, username string, allowStale bool) (*models.AnalysisResult, bool, error) {
	raw, found, err := c.store.Get(ctx, key(username))
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", username, err)
	}
	if !found {
		return nil, false, nil
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		// unreadable entries behave like misses
		c.log.WithError(err).WithField("username", username).Warn("Discarding unreadable cache entry")
		return nil, false, nil
	}

	age := c.now().Sub(result.Timestamp)
	if !allowStale && age >= c.ttl {
		c.log.WithFields(logrus.Fields{
			"username": username,
			"age":      age.String(),
		}).Debug("Cache entry is stale")
		return nil, false, nil
	}

	return &result, true, nil
}

// Put overwrites any prior entry for username
func (c *Cache) Put(ctx context.Context, username string, result *models.AnalysisResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", username, err)
	}

	if err := c.store.Set(ctx, key(username), string(raw)); err != nil {
		return fmt.Errorf("cache put %s: %w", username, err)
	}

	return nil
}

// Clear removes the entry for username
func (c *Cache) Clear(ctx context.Context, username string) error {
	if err := c.store.Delete(ctx, key(username)); err != nil {
		return fmt.Errorf("cache clear %s: %w", username, err)
	}
	return nil
}

// ClearAll removes every cached analysis and returns how many were removed
func (c *Cache) ClearAll(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("cache list: %w", err)
	}

	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			return 0, fmt.Errorf("cache clear %s: %w", k, err)
		}
	}

	c.log.WithField("entries", len(keys)).Info("Cleared analysis cache")
	return len(keys), nil
}
