package folder

import "sync"

type cacheKey struct {
	tenant int64
	id     int64
}

// nodeCache is a small read-through cache of folder nodes. Entries are
// invalidated explicitly on mutation; there is no TTL because every write
// goes through the validator, which owns invalidation.
//
// Private nodes are cached only when shared-folder caching is enabled:
// they are the nodes reachable through shares, and a revoked share must
// not linger in a cache that only structural mutations invalidate.
type nodeCache struct {
	mu           sync.RWMutex
	nodes        map[cacheKey]*Node
	sharedCached bool
}

func newNodeCache(sharedCached bool) *nodeCache {
	return &nodeCache{
		nodes:        make(map[cacheKey]*Node),
		sharedCached: sharedCached,
	}
}

func (c *nodeCache) get(tenant, id int64) *Node {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if node, ok := c.nodes[cacheKey{tenant, id}]; ok {
		return node.Clone()
	}
	return nil
}

func (c *nodeCache) put(node *Node) {
	if c == nil || node.Virtual {
		return
	}
	if node.Type == TypePrivate && !c.sharedCached {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[cacheKey{node.Tenant, node.ID}] = node.Clone()
}

func (c *nodeCache) invalidate(tenant, id int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, cacheKey{tenant, id})
}
