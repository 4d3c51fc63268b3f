package graft

import "context"

// Cache is the interface of an external read cache (Redis, Memcached,
// in-memory) that must be told about committed writes. graft never reads
// from it; after a successful commit the persister drops every entry under
// the TablePrefix of each table it wrote to.
type Cache interface {
	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheKey identifies a cached value of a table.
type CacheKey struct {
	Table string
	Key   string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return TablePrefix(k.Table) + k.Key
}

// TablePrefix returns the key prefix shared by all cached values of a table.
func TablePrefix(table string) string {
	return table + ":"
}
