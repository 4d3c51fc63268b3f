// Package dataloader provides generic helpers for loading rows in batches.
//
// The persister uses it to fetch the stored state of many records with one
// query per chunk of keys instead of one query per record:
//
//	rows, err := dataloader.Batch(ctx, keys, 500, 1, func(ctx context.Context, keys []map[string]any) ([]map[string]any, error) {
//	    return runner.Select(ctx, session, "users", columns, keys)
//	})
//	byID := dataloader.IndexByKey(rows, rowKey)
package dataloader

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc is a function that loads a batch of entities by their keys.
type BatchFunc[K, V any] func(ctx context.Context, keys []K) ([]V, error)

// Chunk splits items into consecutive slices of at most size elements.
// A non-positive size returns all items in a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size:size])
	}
	return append(chunks, items)
}

// Batch loads keys in chunks of size, running at most limit chunks at a
// time, and returns the results in chunk order. The first error cancels the
// remaining chunks and is returned as is.
//
// A limit of 1 (or less) runs the chunks sequentially, which is required
// when fn shares a transactional session that cannot run statements
// concurrently.
func Batch[K, V any](ctx context.Context, keys []K, size, limit int, fn BatchFunc[K, V]) ([]V, error) {
	chunks := Chunk(keys, size)
	if len(chunks) == 0 {
		return nil, nil
	}
	results := make([][]V, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vs, err := fn(ctx, chunk)
			if err != nil {
				return err
			}
			results[i] = vs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []V
	for _, vs := range results {
		all = append(all, vs...)
	}
	return all, nil
}

// Unique returns values with duplicate keys removed, keeping the first
// occurrence of each key.
func Unique[K comparable, V any](values []V, keyFn KeyFunc[K, V]) []V {
	seen := make(map[K]struct{}, len(values))
	result := make([]V, 0, len(values))
	for _, v := range values {
		k := keyFn(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, v)
	}
	return result
}

// IndexByKey builds a lookup map of values by key. When several values share
// a key, the last one wins.
func IndexByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K]V {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	return lookup
}
