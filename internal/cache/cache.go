// Package cache is a tag-invalidated response cache for upstream reads.
//
// Every entry is stored under a request key and labelled with one or more
// tags. A tag with an empty ID labels the whole collection of a type (for
// example the chat list); a tag with an ID labels one resource. Invalidating
// {Type} drops every entry carrying any tag of that type, while {Type, ID}
// drops only entries carrying that exact tag. Concurrent misses for the same
// key share one upstream call.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Tag types used by the gateways.
const (
	TypeChats        = "Chats"
	TypeMessages     = "Messages"
	TypeMyCourses    = "MyCourses"
	TypeCourses      = "Courses"
	TypeCourseTrends = "CourseTrends"
	TypeProfile      = "Profile"
)

// Tag labels a cached entry.
type Tag struct {
	Type string
	ID   string
}

// T is shorthand for a collection tag or, with an id, a resource tag.
func T(typ string, id ...string) Tag {
	if len(id) > 0 {
		return Tag{Type: typ, ID: id[0]}
	}
	return Tag{Type: typ}
}

// Observer receives hit and miss notifications; it may be nil.
type Observer interface {
	CacheHit(endpoint string)
	CacheMiss(endpoint string)
}

type entry struct {
	value   any
	tags    []Tag
	expires time.Time
}

// Cache is safe for concurrent use. The zero value is not usable; use New.
type Cache struct {
	ttl time.Duration
	obs Observer
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	// gen is bumped by every invalidation. A fetch that started before an
	// invalidation neither stores its result nor shares it with later reads.
	gen uint64

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithObserver registers o for hit/miss notifications.
func WithObserver(o Observer) Option { return func(c *Cache) { c.obs = o } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// New returns a cache whose entries live for ttl. A ttl <= 0 disables
// expiry; entries then only leave through invalidation.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{ttl: ttl, now: time.Now, entries: map[string]entry{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the cached value for key or calls fn, caches its result
// under tags and returns it. Errors are never cached. endpoint names the
// query for metrics only.
func Fetch[V any](ctx context.Context, c *Cache, endpoint, key string, tags []Tag, fn func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.hit(endpoint)
		return v.(V), nil
	}
	c.miss(endpoint)

	// Flights are per generation: a read that starts after an invalidation
	// never joins a fetch that began before it.
	gen := c.generation()
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		// Detached from the first caller's cancellation; shared by all waiters.
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(key, v, tags, gen)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) store(key string, v any, tags []Tag, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	e := entry{value: v, tags: append([]Tag(nil), tags...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
}

// Invalidate drops every entry matched by any of tags and returns the number
// of entries removed.
func (c *Cache) Invalidate(tags ...Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	n := 0
	for key, e := range c.entries {
		if matchesAny(e.tags, tags) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = map[string]entry{}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func matchesAny(entryTags, inv []Tag) bool {
	for _, want := range inv {
		for _, have := range entryTags {
			if have.Type != want.Type {
				continue
			}
			if want.ID == "" || have.ID == want.ID {
				return true
			}
		}
	}
	return false
}

func (c *Cache) hit(endpoint string) {
	if c.obs != nil {
		c.obs.CacheHit(endpoint)
	}
}

func (c *Cache) miss(endpoint string) {
	if c.obs != nil {
		c.obs.CacheMiss(endpoint)
	}
}
