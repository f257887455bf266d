package resource

import (
	"context"
	"io"
)

// RateLimitedWriter wraps an io.Writer with the controller's IO limit.
type RateLimitedWriter struct {
	ctx context.Context
	rc  *Controller
	w   io.Writer
}

// NewRateLimitedWriter creates a writer throttled by rc's IO limit.
func NewRateLimitedWriter(ctx context.Context, rc *Controller, w io.Writer) *RateLimitedWriter {
	return &RateLimitedWriter{
		ctx: ctx,
		rc:  rc,
		w:   w,
	}
}

func (w *RateLimitedWriter) Write(p []byte) (n int, err error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// RateLimitedReader wraps an io.Reader with the controller's IO limit.
type RateLimitedReader struct {
	ctx context.Context
	rc  *Controller
	r   io.Reader
}

// NewRateLimitedReader creates a reader throttled by rc's IO limit.
func NewRateLimitedReader(ctx context.Context, rc *Controller, r io.Reader) *RateLimitedReader {
	return &RateLimitedReader{
		ctx: ctx,
		rc:  rc,
		r:   r,
	}
}

func (r *RateLimitedReader) Read(p []byte) (n int, err error) {
	// Pay for the buffer size up front; short reads overcharge slightly,
	// which keeps the limiter conservative.
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
