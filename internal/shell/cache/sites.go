// Package cache keeps recently served site snapshots in Redis so hot names
// do not hit the Registry on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/sitehost/internal/core/domain"
	"github.com/artpar/sitehost/internal/core/site"
	"github.com/redis/go-redis/v9"
)

const (
	siteKeyPrefix = "sitehost:site:" // Snapshot by published name: sitehost:site:{name}
	genKeyPrefix  = "sitehost:gen:"  // Invalidation counter by name: sitehost:gen:{name}
	defaultTTL    = 60 * time.Second

	// genTTL bounds how long a counter outlives its last invalidation. It
	// must be far longer than any Registry read.
	genTTL = 24 * time.Hour
)

// SiteCache is a read-through cache of published snapshots. Entries expire
// after a bounded TTL and are dropped as soon as a name changes hands.
//
// Each name carries a generation counter that Invalidate bumps. A reader
// takes the generation before its Registry lookup and Put only stores the
// result if the generation has not moved, so a lookup that raced an
// unpublish never repopulates the entry.
type SiteCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSiteCache creates a new SiteCache. A non-positive ttl uses the default.
func NewSiteCache(client *redis.Client, ttl time.Duration) *SiteCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SiteCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot for name. ok is false on a miss.
func (c *SiteCache) Get(ctx context.Context, name string) (s *site.PublishedSite, ok bool, err error) {
	data, err := c.client.Get(ctx, c.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached site: %w", err)
	}

	var cached site.PublishedSite
	if err := json.Unmarshal(data, &cached); err != nil {
		// Unreadable entries are treated as misses and overwritten later.
		return nil, false, nil
	}
	return &cached, true, nil
}

// Generation returns the invalidation counter for name. A name that was
// never invalidated is at generation 0.
func (c *SiteCache) Generation(ctx context.Context, name string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

// Put stores a snapshot under its published name if the name is still at
// generation gen. stored is false when an invalidation happened in between.
func (c *SiteCache) Put(ctx context.Context, s *site.PublishedSite, gen int64) (stored bool, err error) {
	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("failed to marshal site: %w", err)
	}

	genKey := c.genKey(s.Name)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(s.Name), data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to cache site: %w", err)
	}
	return true, nil
}

var errStale = errors.New("generation moved")

// Invalidate drops the entries for names and bumps their generations in one
// transaction. Empty names are ignored.
func (c *SiteCache) Invalidate(ctx context.Context, names ...string) error {
	live := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			live = append(live, name)
		}
	}
	if len(live) == 0 {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range live {
			pipe.Incr(ctx, c.genKey(name))
			pipe.Expire(ctx, c.genKey(name), genTTL)
			pipe.Del(ctx, c.key(name))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate cached sites: %w", err)
	}
	return nil
}

// SitePublished drops the new and the previous name so the next request
// reads the fresh snapshot.
func (c *SiteCache) SitePublished(ctx context.Context, project *domain.Project, previous string) error {
	return c.Invalidate(ctx, project.PublishedName, previous)
}

// SiteRemoved drops the released name.
func (c *SiteCache) SiteRemoved(ctx context.Context, _, name string) error {
	return c.Invalidate(ctx, name)
}

// Ping checks the Redis connection.
func (c *SiteCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SiteCache) key(name string) string {
	return siteKeyPrefix + name
}

func (c *SiteCache) genKey(name string) string {
	return genKeyPrefix + name
}
