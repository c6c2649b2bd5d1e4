package formstream

import (
	"bytes"
	"fmt"
	"io"
)

// fieldCollector accumulates small text values in memory. Duplicate names are
// legal and preserved in submission order, matching multi-select form
// semantics.
type fieldCollector struct {
	maxValueBytes int64
	values        map[string][]string
}

func newFieldCollector(opts *FormOptions) *fieldCollector {
	return &fieldCollector{
		maxValueBytes: opts.maxFieldValueBytes,
		values:        make(map[string][]string),
	}
}

// add appends an already decoded value under the field value limit, tightened
// further by a matching rule's MaxBytes.
func (c *fieldCollector) add(name, value string, ruleMax int64) error {
	limit := c.maxValueBytes
	if ruleMax > 0 && ruleMax < limit {
		limit = ruleMax
	}
	if int64(len(value)) > limit {
		return fmt.Errorf("%w: field %q exceeds %d bytes", ErrFieldValueTooLarge, name, limit)
	}
	c.values[name] = append(c.values[name], value)
	return nil
}

// consume reads one text part body into memory. The effective ceiling is the
// field value limit, tightened further by a matching rule's MaxBytes.
func (c *fieldCollector) consume(name string, r io.Reader, ruleMax int64) error {
	limit := c.maxValueBytes
	if ruleMax > 0 && ruleMax < limit {
		limit = ruleMax
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return fmt.Errorf("%w: field %q exceeds %d bytes", ErrFieldValueTooLarge, name, limit)
	}
	c.values[name] = append(c.values[name], buf.String())
	return nil
}
