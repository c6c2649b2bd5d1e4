package formstream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// parseURLEncoded decodes key=value&key=value content into the field
// collector, one byte at a time, so the body is never buffered whole. Each
// pair counts against the part limit, passes through the same rule matching
// as a named multipart part, and its decoded value is bounded by the field
// value limit tightened by a matching rule's MaxBytes. Malformed percent
// escapes fail with ErrInvalidEncoding instead of being silently dropped.
func parseURLEncoded(r io.Reader, p *parser) error {
	br := bufio.NewReaderSize(r, 4<<10)

	var name, value bytes.Buffer
	cur := &name
	inValue := false

	flush := func() error {
		defer func() {
			name.Reset()
			value.Reset()
			cur = &name
			inValue = false
		}()
		// Empty segments ("a=1&&b=2") carry no pair.
		if name.Len() == 0 && !inValue {
			return nil
		}
		if err := p.lim.addPart(); err != nil {
			return err
		}
		// Pairs declare no content type, so only the name-based checks of
		// the rule apply.
		rule, skip, err := p.classifyPart(name.String())
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		var ruleMax int64
		if rule != nil {
			ruleMax = rule.MaxBytes
		}
		return p.fields.add(name.String(), value.String(), ruleMax)
	}

	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			return err
		}

		switch b {
		case '&':
			if err := flush(); err != nil {
				return err
			}
			continue
		case '=':
			if !inValue {
				inValue = true
				cur = &value
				continue
			}
			// A literal '=' inside a value is legal.
			cur.WriteByte('=')
		case '+':
			cur.WriteByte(' ')
		case '%':
			hi, err1 := br.ReadByte()
			lo, err2 := br.ReadByte()
			if err1 != nil || err2 != nil {
				return fmt.Errorf("%w: truncated percent escape", ErrInvalidEncoding)
			}
			h, okh := unhex(hi)
			l, okl := unhex(lo)
			if !okh || !okl {
				return fmt.Errorf("%w: invalid percent escape %%%c%c", ErrInvalidEncoding, hi, lo)
			}
			cur.WriteByte(h<<4 | l)
		default:
			cur.WriteByte(b)
		}

		if int64(cur.Len()) > p.fields.maxValueBytes {
			return fmt.Errorf("%w: urlencoded pair exceeds %d bytes", ErrFieldValueTooLarge, p.fields.maxValueBytes)
		}
	}
}

func unhex(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
