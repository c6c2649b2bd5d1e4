package formstream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/textproto"
)

// peekWindow is the lookahead buffer for boundary scanning. RFC 2046 caps
// boundaries at 70 characters, so a full delimiter always fits.
const peekWindow = 4 << 10

// maxBoundaryLen rejects boundary parameters far beyond the RFC 2046 limit
// before they reach the scanner.
const maxBoundaryLen = 200

// tokenizer splits a byte stream into multipart sections. It is a forward
// only, single-use iterator: each call to next invalidates the previous
// part's body reader. It never seeks and holds at most peekWindow bytes of
// lookahead, so arbitrarily large bodies stream through in bounded memory.
type tokenizer struct {
	br *bufio.Reader
	tp *textproto.Reader

	dashBoundary     []byte // "--boundary"
	dashBoundaryDash []byte // "--boundary--"
	delim            []byte // "\r\n--boundary"

	body       *partBody
	started    bool
	terminated bool
}

func newTokenizer(r io.Reader, boundary string) (*tokenizer, error) {
	if boundary == "" {
		return nil, ErrBoundaryNotFound
	}
	if len(boundary) > maxBoundaryLen {
		return nil, fmt.Errorf("%w: boundary parameter too long", ErrMalformedBoundary)
	}

	br := bufio.NewReaderSize(r, peekWindow)
	dashBoundary := append([]byte("--"), boundary...)
	return &tokenizer{
		br:               br,
		tp:               textproto.NewReader(br),
		dashBoundary:     dashBoundary,
		dashBoundaryDash: append(append([]byte{}, dashBoundary...), '-', '-'),
		delim:            append([]byte("\r\n"), dashBoundary...),
	}, nil
}

// next advances to the following part and returns its header block and body
// reader. It drains whatever remains of the previous part first. Returns
// io.EOF after the terminal boundary marker.
func (t *tokenizer) next() (textproto.MIMEHeader, io.Reader, error) {
	if !t.started {
		if err := t.skipPreamble(); err != nil {
			return nil, nil, err
		}
		t.started = true
	} else if t.body != nil {
		if err := t.body.drain(); err != nil {
			return nil, nil, err
		}
	}
	if t.terminated {
		return nil, nil, io.EOF
	}

	hdr, err := t.tp.ReadMIMEHeader()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: part header block: %v", ErrMalformedBoundary, err)
	}

	t.body = &partBody{t: t}
	return hdr, t.body, nil
}

// skipPreamble discards everything before the opening boundary line. The
// opening line has no leading CRLF, so it is matched line-wise; preamble
// lines longer than the buffer are junk by definition and skipped wholesale.
func (t *tokenizer) skipPreamble() error {
	for {
		line, err := t.br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			for err == bufio.ErrBufferFull {
				_, err = t.br.ReadSlice('\n')
			}
			if err == io.EOF {
				return fmt.Errorf("%w: no opening boundary", ErrMalformedBoundary)
			}
			if err != nil {
				return err
			}
			continue
		}

		trimmed := bytes.TrimRight(line, "\r\n")
		if bytes.Equal(trimmed, t.dashBoundary) {
			return nil
		}
		if bytes.Equal(trimmed, t.dashBoundaryDash) {
			// Empty multipart body, no parts at all.
			t.terminated = true
			return nil
		}

		if err == io.EOF {
			return fmt.Errorf("%w: no opening boundary", ErrMalformedBoundary)
		}
		if err != nil {
			return err
		}
	}
}

// partBody streams one part's body, stopping at the CRLF--boundary delimiter.
// The delimiter itself (and the terminal double dash) is consumed from the
// underlying reader but never surfaces to the consumer.
type partBody struct {
	t    *tokenizer
	done bool
	err  error // sticky
}

func (b *partBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	t := b.t
	data, peekErr := t.br.Peek(peekWindow)

	if idx := bytes.Index(data, t.delim); idx >= 0 {
		if idx > 0 {
			// Content up to the candidate delimiter is safe to emit.
			return t.br.Read(p[:min(len(p), idx)])
		}

		// The window starts with CRLF--boundary. Only the two bytes that
		// follow decide whether this is a real delimiter: "--" terminates
		// the multipart, CRLF continues it, anything else is part content
		// that merely embeds the boundary string.
		need := len(t.delim) + 2
		if len(data) < need {
			if peekErr == io.EOF || peekErr == nil {
				b.err = fmt.Errorf("%w: truncated boundary delimiter", ErrMalformedBoundary)
				return 0, b.err
			}
			b.err = peekErr
			return 0, b.err
		}
		switch {
		case data[len(t.delim)] == '-' && data[len(t.delim)+1] == '-':
			_, _ = t.br.Discard(need)
			// Swallow the optional CRLF after the terminal marker; any
			// epilogue past it is left unread.
			if pk, _ := t.br.Peek(2); len(pk) == 2 && pk[0] == '\r' && pk[1] == '\n' {
				_, _ = t.br.Discard(2)
			}
			b.done = true
			t.terminated = true
			return 0, io.EOF
		case data[len(t.delim)] == '\r' && data[len(t.delim)+1] == '\n':
			_, _ = t.br.Discard(need)
			b.done = true
			return 0, io.EOF
		default:
			// Boundary bytes without the required framing: plain content.
			return t.br.Read(p[:1])
		}
	}

	if peekErr != nil && peekErr != io.EOF {
		if len(data) == 0 {
			b.err = peekErr
			return 0, b.err
		}
		// Emit buffered content first; the error resurfaces on the next read.
	} else if peekErr == io.EOF {
		// The stream ends inside this part: the terminal marker can no
		// longer appear.
		b.err = fmt.Errorf("%w: stream ended before terminal boundary", ErrMalformedBoundary)
		return 0, b.err
	}

	// Hold back any window suffix that could be the start of the delimiter.
	safe := len(data) - delimOverlap(data, t.delim)
	if safe <= 0 {
		safe = 1
	}
	return t.br.Read(p[:min(len(p), safe)])
}

// drain consumes the rest of the part body up to and including its delimiter.
func (b *partBody) drain() error {
	if b.done {
		return nil
	}
	_, err := io.Copy(io.Discard, b)
	return err
}

// delimOverlap returns the length of the longest suffix of data that is a
// proper prefix of delim.
func delimOverlap(data, delim []byte) int {
	max := len(delim) - 1
	if max > len(data) {
		max = len(data)
	}
	for k := max; k > 0; k-- {
		if bytes.HasPrefix(delim, data[len(data)-k:]) {
			return k
		}
	}
	return 0
}
