package rbac

import (
	"strings"

	"clamflow/infrastructure/cache"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleQuality  = "quality"
)

// Roles lists every assignable operator role.
var Roles = []string{RoleAdmin, RoleOperator, RoleQuality}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Rbac registers permission codes next to the routes they guard.
type Rbac struct {
	cache *cache.RbacRolesCache
}

func New(c *cache.RbacRolesCache) *Rbac {
	return &Rbac{cache: c}
}

// Allow grants code on method+pattern to roles. Admins are implicitly allowed everywhere.
func (r *Rbac) Allow(code, method, pattern string, roles ...string) {
	if r == nil || r.cache == nil {
		return
	}
	for _, role := range roles {
		r.cache.Add(cache.Resource{
			Code:    code,
			Pattern: pattern,
			Method:  strings.ToUpper(method),
			Role:    role,
		})
	}
}

// Permitted reports whether any of roles may call method on the matched route pattern.
func (r *Rbac) Permitted(roles []string, method, pattern string) bool {
	for _, role := range roles {
		if role == RoleAdmin {
			return true
		}
	}
	if r == nil || r.cache == nil {
		return false
	}
	return ValidateResourceAccess(r.cache.ResourcesFor(roles), pattern, method)
}

// Codes returns the permission codes visible to roles.
func (r *Rbac) Codes(roles []string) []string {
	if r == nil || r.cache == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, res := range r.cache.ResourcesFor(roles) {
		if _, ok := seen[res.Code]; ok {
			continue
		}
		seen[res.Code] = struct{}{}
		out = append(out, res.Code)
	}
	return out
}

// AllCodes lists every registered permission code, which is what an admin holds.
func (r *Rbac) AllCodes() []string {
	if r == nil || r.cache == nil {
		return nil
	}
	return r.cache.Codes()
}

func ValidateResourceAccess(resources []cache.Resource, path, method string) bool {
	method = strings.ToUpper(method)
	for _, res := range resources {
		if res.Method == method && matchPath(res.Pattern, path) {
			return true
		}
	}
	return false
}

// matchPath compares segment-wise; "*" and chi "{param}" segments match any
// single segment, and a trailing "*" matches any deeper suffix.
func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	patternSeg := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSeg := strings.Split(strings.Trim(path, "/"), "/")

	last := len(patternSeg) - 1
	if patternSeg[last] == "*" && len(pathSeg) >= last {
		patternSeg, pathSeg = patternSeg[:last], pathSeg[:last]
	}
	if len(patternSeg) != len(pathSeg) {
		return false
	}
	for i := range patternSeg {
		if isWildcard(patternSeg[i]) {
			continue
		}
		if patternSeg[i] != pathSeg[i] {
			return false
		}
	}
	return true
}

func isWildcard(seg string) bool {
	return seg == "*" || (strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"))
}
