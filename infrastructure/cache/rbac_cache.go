package cache

import (
	"sort"
	"sync"
)

// Resource grants one role access to a method on a route pattern.
type Resource struct {
	Code    string
	Pattern string
	Method  string
	Role    string
}

// RbacRolesCache maps roles to the resources they may reach.
type RbacRolesCache struct {
	mu        sync.RWMutex
	resources map[string][]Resource
	codes     map[string]struct{}
}

func NewRbacRolesCache() *RbacRolesCache {
	return &RbacRolesCache{
		resources: make(map[string][]Resource),
		codes:     make(map[string]struct{}),
	}
}

func (c *RbacRolesCache) Add(r Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[r.Role] = append(c.resources[r.Role], r)
	c.codes[r.Code] = struct{}{}
}

func (c *RbacRolesCache) ResourcesFor(roles []string) []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Resource
	for _, role := range roles {
		out = append(out, c.resources[role]...)
	}
	return out
}

// Codes lists every registered permission code, sorted.
func (c *RbacRolesCache) Codes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.codes))
	for name := range c.codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
