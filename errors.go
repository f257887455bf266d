package slabgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/slabgo/slab"
	"github.com/hupe1980/slabgo/wal"
)

var (
	// ErrClosed is returned by operations on a closed Slab.
	ErrClosed = errors.New("store is closed")

	// ErrHandleNotLive is returned when an operation addresses a slot that
	// is free, out of range, or Nil.
	ErrHandleNotLive = errors.New("handle is not live")

	// ErrNotFound is returned when a scan matches nothing.
	ErrNotFound = errors.New("not found")
)

// ErrReplayDivergence reports that replaying the log did not reproduce the
// handles it recorded. The snapshot and the log describe different histories;
// one of them is damaged or they belong to different stores.
type ErrReplayDivergence struct {
	Seq    uint64
	Logged slab.Handle
	Got    slab.Handle
}

func (e *ErrReplayDivergence) Error() string {
	return fmt.Sprintf("replay diverged at seq %d: logged handle %d, got %d", e.Seq, e.Logged, e.Got)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, wal.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
