package storage

import (
	"context"
	"path"
	"strings"

	"github.com/dmitrymomot/formstream"
)

// Object describes a stored file.
type Object struct {
	// Name is the final file name at the destination.
	Name string

	// Size is the object size in bytes.
	Size int64

	// Path is backend-relative: a filesystem path under the base directory
	// for local storage, an object key for S3.
	Path string

	// ContentType is the media type recorded with the object.
	ContentType string

	// SHA256 carries the parser's content digest when hashing was enabled.
	SHA256 string
}

// Storage persists parsed file parts.
type Storage interface {
	// Store moves a file part to its final destination. It takes ownership
	// of the part's temp file: on success the temp file no longer exists.
	// dest may be a directory (trailing slash) or a full destination path;
	// when the file name is omitted, the part's sanitized original name is
	// used.
	Store(ctx context.Context, part *formstream.FilePart, dest string) (*Object, error)

	// Delete removes a stored object.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, path string) bool

	// URL returns the public URL for a stored object.
	URL(path string) string
}

// destName resolves the final object name for a part stored at dest. A dest
// ending in a separator names a directory; the file name then comes from the
// part itself.
func destName(part *formstream.FilePart, dest string) (dir, name string) {
	if strings.HasSuffix(dest, "/") {
		return strings.TrimSuffix(dest, "/"), partFileName(part)
	}
	dir, name = path.Split(dest)
	if name == "" {
		name = partFileName(part)
	}
	return strings.TrimSuffix(dir, "/"), formstream.SanitizeFileName(name)
}

func partFileName(part *formstream.FilePart) string {
	if part.OriginalFileName != "" {
		return part.OriginalFileName
	}
	// The parser sanitizes filenames before they reach storage; an empty one
	// means the part never declared any.
	return formstream.SanitizeFileName("")
}
