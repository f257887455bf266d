// This file implements a fluent scan API for querying Slab instances.

package slabgo

import (
	"context"
	"iter"
)

// scanCheckInterval is the number of slots visited between context checks.
const scanCheckInterval = 1024

// Result is a scanned value together with its handle.
type Result[T any] struct {
	Handle Handle
	Value  T
}

// Scan creates a new fluent scan builder over the live values.
//
// Example:
//
//	results, err := db.Scan().
//	    Filter(func(h slabgo.Handle, o *Order) bool { return o.Total > 100 }).
//	    Limit(10).
//	    Execute(ctx)
func (db *Slab[T]) Scan() *ScanBuilder[T] {
	return &ScanBuilder[T]{
		db: db,
	}
}

// ScanBuilder is a fluent builder for constructing scans.
type ScanBuilder[T any] struct {
	db     *Slab[T]
	filter func(h Handle, value *T) bool
	limit  int
}

// Filter sets a predicate for the scan. Only values where fn returns true
// are included. The pointer passed to fn is only valid during the call.
func (sb *ScanBuilder[T]) Filter(fn func(h Handle, value *T) bool) *ScanBuilder[T] {
	sb.filter = fn
	return sb
}

// Limit caps the number of results. Zero means no limit.
func (sb *ScanBuilder[T]) Limit(n int) *ScanBuilder[T] {
	sb.limit = n
	return sb
}

// Execute runs the scan and returns matching values in handle order.
func (sb *ScanBuilder[T]) Execute(ctx context.Context) ([]Result[T], error) {
	db := sb.db

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrClosed
	}

	var results []Result[T]

	visited := 0
	for h, v := range db.store.All() {
		visited++
		if visited%scanCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if sb.filter != nil && !sb.filter(h, v) {
			continue
		}

		results = append(results, Result[T]{Handle: h, Value: *v})
		if sb.limit > 0 && len(results) >= sb.limit {
			break
		}
	}

	return results, nil
}

// MustExecute runs the scan, panicking on error.
// Use this only in tests or when you're certain the scan is valid.
func (sb *ScanBuilder[T]) MustExecute(ctx context.Context) []Result[T] {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// Stream returns an iterator over scan results.
//
// Results are collected under the store lock before iteration begins, so
// the caller may mutate the store while consuming them.
//
// Example:
//
//	for result, err := range db.Scan().Filter(pred).Stream(ctx) {
//	    if err != nil { break }
//	    process(result)
//	}
func (sb *ScanBuilder[T]) Stream(ctx context.Context) iter.Seq2[Result[T], error] {
	return func(yield func(Result[T], error) bool) {
		results, err := sb.Execute(ctx)
		if err != nil {
			yield(Result[T]{}, err)
			return
		}

		for _, r := range results {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// First returns the first matching value, or ErrNotFound if none match.
func (sb *ScanBuilder[T]) First(ctx context.Context) (Result[T], error) {
	sb.limit = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	if len(results) == 0 {
		return Result[T]{}, ErrNotFound
	}
	return results[0], nil
}

// Count executes the scan and returns the number of results.
func (sb *ScanBuilder[T]) Count(ctx context.Context) (int, error) {
	results, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// Exists checks if at least one value matches the scan.
func (sb *ScanBuilder[T]) Exists(ctx context.Context) (bool, error) {
	sb.limit = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}
