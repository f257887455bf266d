package slabgo

// Close releases resources held by this Slab instance.
//
// It flushes and closes the WAL if one is enabled. Close is idempotent and
// nil-safe; operations after Close return ErrClosed.
func (db *Slab[T]) Close() error {
	if db == nil {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var firstErr error
	if db.wal != nil {
		if err := db.wal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
