package formstream

import (
	"mime"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// partHeader is the parsed metadata of one multipart section.
type partHeader struct {
	name        string
	fileName    string // sanitized; empty when the part declared no filename
	hasFileName bool
	mediaType   string // declared Content-Type without parameters
	boundary    string // boundary parameter when mediaType is multipart/*
	encoding    string // Content-Encoding, lowercased
	raw         textproto.MIMEHeader
}

// parsePartHeader extracts name, filename, content type and encoding from a
// part's header block. Unparseable Content-Disposition or Content-Type values
// are tolerated and left empty; routing decides later whether that matters.
func parsePartHeader(hdr textproto.MIMEHeader) partHeader {
	p := partHeader{raw: hdr}

	if cd := hdr.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			p.name = params["name"]
			if fn, ok := params["filename"]; ok {
				p.hasFileName = true
				p.fileName = SanitizeFileName(fn)
			}
		}
	}

	if ct := hdr.Get("Content-Type"); ct != "" {
		if mt, params, err := mime.ParseMediaType(ct); err == nil {
			p.mediaType = mt
			p.boundary = params["boundary"]
		}
	}

	p.encoding = strings.ToLower(strings.TrimSpace(hdr.Get("Content-Encoding")))
	return p
}

// isMultipart reports whether the part's own content type is multipart.
func (p *partHeader) isMultipart() bool {
	return strings.HasPrefix(p.mediaType, "multipart/")
}

// isFile reports whether the part should be routed to the file sink rather
// than collected as a text field.
func (p *partHeader) isFile() bool {
	return p.hasFileName
}

// SanitizeFileName strips path components, traversal segments and control
// bytes from a client-provided filename. When nothing safe remains, a random
// opaque identifier is substituted so the file can still be persisted.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return uuid.NewString()
	}
	return name
}
