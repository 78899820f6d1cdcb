package policy

import (
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

type cachedDecision struct {
	revision    uint64
	decision    Decision
	permissions []string
}

// DecisionCache memoises Evaluate results in an expiring LRU. Entries carry
// the engine revision they were computed against; any mutation of the engine
// invalidates them implicitly, so the cache never serves a stale decision.
type DecisionCache struct {
	engine *Engine
	cache  *lru.LRU[string, cachedDecision]

	onHit  func()
	onMiss func()
}

// NewDecisionCache creates a cache over the engine holding up to size entries
// for at most ttl.
func NewDecisionCache(engine *Engine, size int, ttl time.Duration) *DecisionCache {
	if size < 1 {
		size = 1
	}
	return &DecisionCache{
		engine: engine,
		cache:  lru.NewLRU[string, cachedDecision](size, nil, ttl),
	}
}

// Evaluate answers from the cache when a current-revision entry exists and
// delegates to the engine otherwise.
func (c *DecisionCache) Evaluate(userID, action string, ctx AccessContext, resource Attributes, objectRoles []ObjectRole) (Decision, []string) {
	key := cacheKey(userID, action, ctx, resource, objectRoles)
	revision := c.engine.Revision()

	if entry, ok := c.cache.Get(key); ok && entry.revision == revision {
		if c.onHit != nil {
			c.onHit()
		}
		return entry.decision, clonePermissions(entry.permissions)
	}
	if c.onMiss != nil {
		c.onMiss()
	}

	decision, permissions := c.engine.Evaluate(userID, action, ctx, resource, objectRoles)
	c.cache.Add(key, cachedDecision{revision: revision, decision: decision, permissions: clonePermissions(permissions)})
	return decision, permissions
}

// clonePermissions copies a cached permission slice so callers cannot mutate
// the stored entry through the returned value.
func clonePermissions(permissions []string) []string {
	if permissions == nil {
		return nil
	}
	out := make([]string, len(permissions))
	copy(out, permissions)
	return out
}

// SetObservers installs hit and miss callbacks, typically metric counters.
// Either may be nil. Not safe to call after the cache is in use.
func (c *DecisionCache) SetObservers(onHit, onMiss func()) {
	c.onHit = onHit
	c.onMiss = onMiss
}

// Len returns the number of cached entries, stale ones included.
func (c *DecisionCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached entry.
func (c *DecisionCache) Purge() {
	c.cache.Purge()
}

// cacheKey builds a deterministic key from every input that influences an
// evaluation. Map iteration order is neutralised by sorting; the nil versus
// empty distinction for objectRoles is preserved because the two change the
// evaluation outcome.
func cacheKey(userID, action string, ctx AccessContext, resource Attributes, objectRoles []ObjectRole) string {
	var b strings.Builder
	b.WriteString(userID)
	b.WriteByte('\x1f')
	b.WriteString(action)
	b.WriteByte('\x1f')
	b.WriteString(ctx.UserID)
	b.WriteByte('\x1e')
	b.WriteString(ctx.TenantID)
	b.WriteByte('\x1e')
	b.WriteString(ctx.Level)
	writeSorted(&b, ctx.WorkspaceIDs)
	writeSorted(&b, ctx.ManagerOf)
	writeSorted(&b, ctx.Labels)
	writeSorted(&b, ctx.ADGroups)
	writeAttributes(&b, ctx.Attributes)
	writeAttributes(&b, resource)

	b.WriteByte('\x1f')
	if objectRoles == nil {
		b.WriteByte('-')
	} else {
		names := make([]string, len(objectRoles))
		for i, role := range objectRoles {
			names[i] = string(role)
		}
		writeSorted(&b, names)
	}
	return b.String()
}

func writeSorted(b *strings.Builder, values []string) {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	b.WriteByte('\x1e')
	for _, v := range sorted {
		b.WriteString(v)
		b.WriteByte('\x1d')
	}
}

func writeAttributes(b *strings.Builder, attrs Attributes) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('\x1e')
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		writeSorted(b, attrs[k])
	}
}
