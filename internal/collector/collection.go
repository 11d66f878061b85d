package collector

import (
	"sync"

	"github.com/IshaanNene/xmarks/internal/types"
)

// Collection is the in-memory accumulator of scraped posts, keyed by id.
// It remembers first-insertion order so exports are stable.
type Collection struct {
	mu    sync.RWMutex
	posts map[string]*types.Post
	order []string
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{
		posts: make(map[string]*types.Post),
	}
}

// Merge adds posts to the collection. A post whose id is already present
// replaces the stored one in place. Posts with an empty id are ignored.
// It returns the number of ids that were new.
func (c *Collection) Merge(posts []types.Post) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for i := range posts {
		p := posts[i].Clone()
		if p.ID == "" {
			continue
		}
		if _, exists := c.posts[p.ID]; !exists {
			c.order = append(c.order, p.ID)
			added++
		}
		c.posts[p.ID] = p
	}
	return added
}

// Get returns a copy of the post with the given id.
func (c *Collection) Get(id string) (types.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.posts[id]
	if !ok {
		return types.Post{}, false
	}
	return *p.Clone(), true
}

// Len returns the number of posts collected.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Values returns copies of all posts in insertion order. Never nil.
func (c *Collection) Values() []types.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Post, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.posts[id].Clone())
	}
	return out
}

// Clear removes every post.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = make(map[string]*types.Post)
	c.order = nil
}
