package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Non-blocking reserve over budget is vetoed and leaves usage alone.
	err := c.Reserve(20)
	assert.ErrorIs(t, err, ErrMemoryLimit)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Blocking acquire over budget waits until the context gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.AcquireMemory(ctx, 20)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.Reserve(20))
	assert.Equal(t, int64(60), c.MemoryUsage())

	c.Release(20)
	assert.Equal(t, int64(40), c.MemoryUsage())
}

func TestControllerUnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	require.NoError(t, c.Reserve(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.Release(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestControllerNil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.Reserve(100))
	c.Release(100)
	assert.Equal(t, int64(0), c.MemoryUsage())
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
}

func TestControllerConcurrency(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})

	require.NoError(t, c.AcquireBackground(context.Background()))
	require.NoError(t, c.AcquireBackground(context.Background()))

	assert.False(t, c.TryAcquireBackground())

	c.ReleaseBackground()

	assert.True(t, c.TryAcquireBackground())
}

func TestAcquireIOChunksLargeRequests(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Larger than the burst: must be granted in chunks, not rejected.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.AcquireIO(ctx, 1<<20+512))
}

func TestRateLimitedWriter(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(context.Background(), c, &buf)

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	r := NewRateLimitedReader(context.Background(), c, bytes.NewReader([]byte("hello")))

	buf := make([]byte, 5)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}
