package formstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// copyBufSize balances memory per in-flight upload against syscall overhead.
const copyBufSize = 32 << 10

// sinkResult describes a fully written temp file.
type sinkResult struct {
	path   string
	length int64
	sha256 string
}

// fileSink streams part bodies to uniquely named temp files. One sink serves
// one parse; temp names carry a random UUID suffix so concurrent requests
// never collide in the shared directory.
type fileSink struct {
	dir     string
	hashing bool
	created []string // every temp path written by this parse, for cleanup
}

func newFileSink(opts *FormOptions) *fileSink {
	return &fileSink{dir: opts.uploadDir, hashing: opts.computeSHA256}
}

// consume streams r to a new temp file, hashing incrementally when enabled
// and enforcing maxBytes while writing. On any failure the partial file is
// deleted before the error returns, so callers never observe a half-written
// file at the returned path.
func (s *fileSink) consume(ctx context.Context, r io.Reader, maxBytes int64) (*sinkResult, error) {
	path := filepath.Join(s.dir, "formstream-"+uuid.NewString())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	s.created = append(s.created, path)

	var digest hash.Hash
	if s.hashing {
		digest = sha256.New()
	}

	fail := func(err error) (*sinkResult, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	var written int64
	buf := make([]byte, copyBufSize)
	for {
		select {
		case <-ctx.Done():
			return fail(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if written += int64(n); written > maxBytes {
				return fail(fmt.Errorf("%w: body exceeds %d bytes", ErrPartTooLarge, maxBytes))
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return fail(fmt.Errorf("write temp file: %w", err))
			}
			if digest != nil {
				digest.Write(buf[:n])
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(readErr)
		}
	}

	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("flush temp file: %w", err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("close temp file: %w", err))
	}

	res := &sinkResult{path: path, length: written}
	if digest != nil {
		res.sha256 = hex.EncodeToString(digest.Sum(nil))
	}
	return res, nil
}

// cleanup removes every temp file this parse created. Called on all failure
// paths; files already removed are ignored.
func (s *fileSink) cleanup(opts *FormOptions) {
	for _, path := range s.created {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			opts.log().Warn("formstream: failed to remove temp file",
				"path", path, "error", err)
		}
	}
}
