package formstream

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// newDecompressor wraps r in a lazy decompressor for the given
// Content-Encoding. Bytes inflate only as the consumer reads them; callers
// that need an expansion ceiling wrap the result via decodeBody.
func newDecompressor(r io.Reader, encoding string) (io.Reader, error) {
	switch encoding {
	case "", "identity":
		return r, nil
	case "gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip stream: %v", ErrInvalidEncoding, err)
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return nil, fmt.Errorf("%w: content encoding %q", ErrInvalidEncoding, encoding)
	}
}

// decodeBody wraps a part body in a bounded decompressor for the declared
// Content-Encoding. The wrapper fails with ErrDecompressionLimitExceeded the
// moment the decompressed count crosses maxBytes, without ever inflating
// ahead of the consumer. This is the defense against decompression bombs
// hidden inside individual multipart sections, which whole-body decompression
// middleware never sees.
func decodeBody(r io.Reader, encoding string, maxBytes int64) (io.Reader, error) {
	inflated, err := newDecompressor(r, encoding)
	if err != nil {
		return nil, err
	}
	if inflated == r {
		return r, nil
	}
	return &boundedReader{src: inflated, remaining: maxBytes}, nil
}

// boundedReader fails the instant more than the allowed number of bytes comes
// out of the wrapped reader.
type boundedReader struct {
	src       io.Reader
	remaining int64
	err       error // sticky
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}

	// Read one byte past the remaining allowance so overflow is detected on
	// the read that crosses the line, not one read later.
	limit := b.remaining + 1
	if int64(len(p)) > limit {
		p = p[:limit]
	}

	n, err := b.src.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		b.err = fmt.Errorf("%w", ErrDecompressionLimitExceeded)
		return 0, b.err
	}
	if err != nil && err != io.EOF {
		b.err = err
	}
	return n, err
}
