package formstream

import (
	"io"
	"mime"
	"net/textproto"
	"os"
	"path/filepath"
)

// FilePart describes one uploaded file streamed to disk. The temp file is
// fully written, flushed and closed by the time the payload is returned; the
// caller owns its final disposition (move, read, delete).
type FilePart struct {
	// Name is the part name from Content-Disposition. Empty in ordered mode
	// when the part declared none.
	Name string

	// OriginalFileName is the sanitized client-provided filename. Path
	// separators and dot-dot segments are stripped; when nothing safe
	// remains, a random identifier is substituted.
	OriginalFileName string

	// ContentType is the part's declared media type, without parameters.
	ContentType string

	// Length is the number of body bytes written to TempPath, after any
	// per-part decompression.
	Length int64

	// TempPath is the on-disk temp file holding the part body.
	TempPath string

	// SHA256 is the lowercase hex digest of the body, when hashing is
	// enabled. Empty otherwise.
	SHA256 string

	// Header holds the part's raw MIME header block.
	Header textproto.MIMEHeader
}

// Open opens the temp file for reading.
func (f *FilePart) Open() (io.ReadCloser, error) {
	return os.Open(f.TempPath)
}

// Discard deletes the temp file. Callers that reject an upload after parsing
// use this to release the disk space.
func (f *FilePart) Discard() error {
	return os.Remove(f.TempPath)
}

// Ext returns the extension of the original filename, including the dot.
func (f *FilePart) Ext() string {
	return filepath.Ext(f.OriginalFileName)
}

// MediaType returns the declared media type, falling back to the extension of
// the original filename when the part carried no Content-Type header.
func (f *FilePart) MediaType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return mime.TypeByExtension(f.Ext())
}

// RawPart is one section of an ordered-parts (multipart/mixed) payload,
// preserved in wire order.
type RawPart struct {
	// Name is the Content-Disposition name, if the part declared one.
	Name string

	// ContentType is the part's declared media type, without parameters.
	ContentType string

	// Length is the number of body bytes written to TempPath. Zero for
	// parts carrying a nested payload.
	Length int64

	// TempPath is the on-disk temp file holding the part body. Empty for
	// parts carrying a nested payload.
	TempPath string

	// Nested holds the parsed payload of a part whose content type is
	// itself multipart, one level per configured nesting depth.
	Nested *OrderedPartsPayload

	// Header holds the part's raw MIME header block.
	Header textproto.MIMEHeader
}

// NamedPartsPayload is the result of parsing multipart/form-data or
// urlencoded bodies. It is immutable once returned and owns no live stream,
// only in-memory values and temp-file paths, so it remains valid after the
// request body is gone.
type NamedPartsPayload struct {
	// Fields maps field names to values in submission order.
	Fields map[string][]string

	// Files maps part names to streamed file parts in submission order.
	Files map[string][]*FilePart
}

// FieldValue returns the first value for the field name, or "".
func (p *NamedPartsPayload) FieldValue(name string) string {
	if vals := p.Fields[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Field returns all values for the field name.
func (p *NamedPartsPayload) Field(name string) []string {
	return p.Fields[name]
}

// File returns the first file part for the name, or nil.
func (p *NamedPartsPayload) File(name string) *FilePart {
	if files := p.Files[name]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// Discard deletes every temp file held by the payload. The first error is
// returned; remaining files are still attempted.
func (p *NamedPartsPayload) Discard() error {
	var first error
	for _, files := range p.Files {
		for _, f := range files {
			if err := f.Discard(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// OrderedPartsPayload is the result of parsing multipart/mixed. Parts mirror
// the exact wire order.
type OrderedPartsPayload struct {
	Parts []*RawPart
}

// Discard deletes every temp file held by the payload, including nested
// payloads. The first error is returned; remaining files are still attempted.
func (p *OrderedPartsPayload) Discard() error {
	var first error
	for _, part := range p.Parts {
		if part.TempPath != "" {
			if err := os.Remove(part.TempPath); err != nil && first == nil {
				first = err
			}
		}
		if part.Nested != nil {
			if err := part.Nested.Discard(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Payload is the tagged result of a parse: exactly one of Named or Ordered is
// set, according to the request content type.
type Payload struct {
	// Named is set for multipart/form-data and urlencoded requests.
	Named *NamedPartsPayload

	// Ordered is set for multipart/mixed requests.
	Ordered *OrderedPartsPayload
}

// Discard deletes every temp file held by the payload.
func (p *Payload) Discard() error {
	if p.Named != nil {
		return p.Named.Discard()
	}
	if p.Ordered != nil {
		return p.Ordered.Discard()
	}
	return nil
}
