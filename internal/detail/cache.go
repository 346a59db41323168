// Package detail caches the rendered detail of messages already fetched in
// the current session, together with where each listed message lives.
package detail

import (
	"github.com/nhle/mailclient/internal/model"
)

// Cache maps message identifiers to details and server locations. It is
// owned by a single session goroutine and is not safe for concurrent use.
type Cache struct {
	details   map[string]model.EmailDetail
	locations map[string]Location
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	c.Reset()
	return c
}

// Get returns a copy of the cached detail for id.
func (c *Cache) Get(id string) (model.EmailDetail, bool) {
	d, ok := c.details[id]
	if !ok {
		return model.EmailDetail{}, false
	}
	return d.Clone(), true
}

// Put stores a copy of d under id.
func (c *Cache) Put(id string, d model.EmailDetail) {
	c.details[id] = d.Clone()
}

// Remember records where the message minted as id lives.
func (c *Cache) Remember(id string, loc Location) {
	c.locations[id] = loc
}

// Locate resolves id to a server location, preferring what the pager
// recorded over parsing the identifier.
func (c *Cache) Locate(id string) (Location, error) {
	if loc, ok := c.locations[id]; ok {
		return loc, nil
	}
	return ParseID(id)
}

// Len returns the number of cached details.
func (c *Cache) Len() int {
	return len(c.details)
}

// Reset drops everything.
func (c *Cache) Reset() {
	c.details = make(map[string]model.EmailDetail)
	c.locations = make(map[string]Location)
}
