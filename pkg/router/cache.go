package router

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/wayfarer/pkg/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of routing decisions kept by NewCache(0).
const DefaultCacheSize = 256

// Cache keeps recent routing decisions keyed by a hash of everything that
// influences them. Entries are copied on the way in and out, so a cached
// decision can never be mutated by a caller.
type Cache struct {
	entries *lru.Cache[string, domain.RoutingDecision]
}

// NewCache creates a bounded LRU cache. Sizes below one use DefaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size < 1 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, domain.RoutingDecision](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) get(key string) (domain.RoutingDecision, bool) {
	d, ok := c.entries.Get(key)
	if !ok {
		return domain.RoutingDecision{}, false
	}
	return d.Clone(), true
}

func (c *Cache) add(key string, d domain.RoutingDecision) {
	c.entries.Add(key, d.Clone())
}

// Len returns the number of cached decisions.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// cacheKey hashes the normalized utterance together with the other routing inputs:
// the continuity set, the limit and hint expansion.
func cacheKey(normalized string, active []string, limit int, expand bool) string {
	ids := append([]string(nil), active...)
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(limit)))
	if expand {
		h.Write([]byte("+hints"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
