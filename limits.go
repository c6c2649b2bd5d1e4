package formstream

import (
	"context"
	"fmt"
	"io"
)

// limiter tracks per-parse counters shared by every pipeline stage. It is
// scoped to a single request's parse, so no locking is needed.
type limiter struct {
	opts      *FormOptions
	partCount int
}

// addPart counts one part (or urlencoded pair) against the limit.
func (l *limiter) addPart() error {
	l.partCount++
	if l.partCount > l.opts.maxParts {
		return fmt.Errorf("%w: more than %d parts", ErrTooManyParts, l.opts.maxParts)
	}
	return nil
}

// partBodyLimit resolves the effective byte ceiling for a file part under the
// given rule.
func (l *limiter) partBodyLimit(rule *PartRule) int64 {
	limit := l.opts.maxPartBodyBytes
	if rule != nil && rule.MaxBytes > 0 && rule.MaxBytes < limit {
		limit = rule.MaxBytes
	}
	return limit
}

// bodyReader wraps the request body with total-size accounting and context
// cancellation. Every byte the pipeline consumes passes through here exactly
// once, so the request limit counts wire bytes, not decompressed bytes.
type bodyReader struct {
	ctx   context.Context
	src   io.Reader
	max   int64
	total int64
	err   error // sticky
}

func newBodyReader(ctx context.Context, src io.Reader, max int64) *bodyReader {
	return &bodyReader{ctx: ctx, src: src, max: max}
}

func (r *bodyReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if err := r.ctx.Err(); err != nil {
		r.err = fmt.Errorf("%w: %v", ErrCancelled, err)
		return 0, r.err
	}

	n, err := r.src.Read(p)
	r.total += int64(n)
	if r.total > r.max {
		r.err = fmt.Errorf("%w: body exceeds %d bytes", ErrRequestTooLarge, r.max)
		return 0, r.err
	}
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}
