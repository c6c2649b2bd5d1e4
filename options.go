package formstream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Default limits. Chosen to be safe for typical form endpoints; routes with
// large uploads raise them explicitly.
const (
	DefaultMaxRequestBodyBytes         = 64 << 20 // 64 MB
	DefaultMaxPartBodyBytes            = 32 << 20 // 32 MB
	DefaultMaxFieldValueBytes          = 1 << 20  // 1 MB
	DefaultMaxParts                    = 128
	DefaultMaxNestingDepth             = 1
	DefaultMaxDecompressedBytesPerPart = 32 << 20 // 32 MB
)

// UnknownPartPolicy controls what happens to a named part that matches no
// configured rule.
type UnknownPartPolicy int

const (
	// UnknownPartAllow stores unmatched parts without constraints.
	UnknownPartAllow UnknownPartPolicy = iota
	// UnknownPartDrop consumes and discards unmatched parts.
	UnknownPartDrop
	// UnknownPartReject fails the parse on the first unmatched part.
	UnknownPartReject
)

// FormOptions is the immutable per-route parser configuration. Build it once
// at route registration with NewOptions and share it across requests; it is
// never mutated after construction.
type FormOptions struct {
	uploadDir                string
	computeSHA256            bool
	maxRequestBodyBytes      int64
	maxPartBodyBytes         int64
	maxFieldValueBytes       int64
	maxParts                 int
	maxNestingDepth          int
	allowedContentTypes      map[string]struct{}
	rejectUnknownContentType bool
	enablePartDecompression  bool
	maxDecompressedBytes     int64
	unknownParts             UnknownPartPolicy
	rules                    []PartRule
	logger                   *slog.Logger
}

// Option configures FormOptions during construction.
type Option func(*FormOptions)

// WithUploadDir sets the directory for temp files of streamed file parts.
// Defaults to os.TempDir().
func WithUploadDir(dir string) Option {
	return func(o *FormOptions) { o.uploadDir = dir }
}

// WithSHA256 enables incremental SHA-256 hashing of file parts as they are
// written.
func WithSHA256() Option {
	return func(o *FormOptions) { o.computeSHA256 = true }
}

// WithMaxRequestBodyBytes caps total bytes consumed from the request body.
func WithMaxRequestBodyBytes(n int64) Option {
	return func(o *FormOptions) { o.maxRequestBodyBytes = n }
}

// WithMaxPartBodyBytes caps the size of a single file part body.
func WithMaxPartBodyBytes(n int64) Option {
	return func(o *FormOptions) { o.maxPartBodyBytes = n }
}

// WithMaxFieldValueBytes caps the size of a single text field value.
func WithMaxFieldValueBytes(n int64) Option {
	return func(o *FormOptions) { o.maxFieldValueBytes = n }
}

// WithMaxParts caps the number of parts (urlencoded pairs count the same).
func WithMaxParts(n int) Option {
	return func(o *FormOptions) { o.maxParts = n }
}

// WithMaxNestingDepth sets how many levels of multipart-inside-multipart are
// accepted. The default of 1 admits one nested section; deeper bodies fail
// with ErrNestingTooDeep.
func WithMaxNestingDepth(n int) Option {
	return func(o *FormOptions) { o.maxNestingDepth = n }
}

// WithAllowedContentTypes restricts the accepted request media types. When
// empty, the three standard form types are accepted.
func WithAllowedContentTypes(types ...string) Option {
	return func(o *FormOptions) {
		o.allowedContentTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			o.allowedContentTypes[t] = struct{}{}
		}
	}
}

// WithRejectUnknownContentType makes the dispatcher fail any request whose
// media type is not in the allowed set, instead of falling back to the
// closest parsing strategy.
func WithRejectUnknownContentType() Option {
	return func(o *FormOptions) { o.rejectUnknownContentType = true }
}

// WithPartDecompression enables per-part Content-Encoding handling (gzip,
// deflate, br) bounded by maxBytes of decompressed output per part.
func WithPartDecompression(maxBytes int64) Option {
	return func(o *FormOptions) {
		o.enablePartDecompression = true
		if maxBytes > 0 {
			o.maxDecompressedBytes = maxBytes
		}
	}
}

// WithUnknownPartPolicy sets handling of named parts that match no rule.
func WithUnknownPartPolicy(p UnknownPartPolicy) Option {
	return func(o *FormOptions) { o.unknownParts = p }
}

// WithRules sets the ordered part rule list for named-parts mode.
func WithRules(rules ...PartRule) Option {
	return func(o *FormOptions) { o.rules = append(o.rules, rules...) }
}

// WithLogger sets the logger used for cleanup failures and parse aborts.
// A nil logger disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *FormOptions) { o.logger = l }
}

// NewOptions builds validated, immutable parser options.
func NewOptions(opts ...Option) (*FormOptions, error) {
	o := &FormOptions{
		uploadDir:            os.TempDir(),
		maxRequestBodyBytes:  DefaultMaxRequestBodyBytes,
		maxPartBodyBytes:     DefaultMaxPartBodyBytes,
		maxFieldValueBytes:   DefaultMaxFieldValueBytes,
		maxParts:             DefaultMaxParts,
		maxNestingDepth:      DefaultMaxNestingDepth,
		maxDecompressedBytes: DefaultMaxDecompressedBytesPerPart,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.uploadDir == "" {
		return nil, errors.New("upload directory must not be empty")
	}
	if o.maxRequestBodyBytes <= 0 || o.maxPartBodyBytes <= 0 || o.maxFieldValueBytes <= 0 {
		return nil, errors.New("byte limits must be positive")
	}
	if o.maxParts <= 0 {
		return nil, errors.New("max parts must be positive")
	}
	if o.maxNestingDepth < 0 {
		return nil, errors.New("max nesting depth must not be negative")
	}
	if o.enablePartDecompression && o.maxDecompressedBytes <= 0 {
		return nil, errors.New("decompressed byte limit must be positive")
	}

	seen := make(map[string]struct{}, len(o.rules))
	for i := range o.rules {
		if err := o.rules[i].validate(); err != nil {
			return nil, fmt.Errorf("rule %q: %w", o.rules[i].Name, err)
		}
		if _, dup := seen[o.rules[i].Name]; dup {
			return nil, fmt.Errorf("duplicate rule for part %q", o.rules[i].Name)
		}
		seen[o.rules[i].Name] = struct{}{}
	}

	return o, nil
}

// MustOptions works like NewOptions but panics on invalid configuration.
// Intended for route registration where options are static.
func MustOptions(opts ...Option) *FormOptions {
	o, err := NewOptions(opts...)
	if err != nil {
		panic(fmt.Sprintf("formstream: invalid options: %v", err))
	}
	return o
}

// ruleFor returns the rule matching the part name, if any.
func (o *FormOptions) ruleFor(name string) *PartRule {
	for i := range o.rules {
		if o.rules[i].Name == name {
			return &o.rules[i]
		}
	}
	return nil
}

// log returns the configured logger or a discard logger.
func (o *FormOptions) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// contentTypeAllowed reports whether the request media type passes the
// configured allow list. An empty list imposes no restriction here; the
// dispatcher still fails types it has no parsing strategy for.
func (o *FormOptions) contentTypeAllowed(mediaType string) bool {
	if len(o.allowedContentTypes) == 0 {
		return true
	}
	_, ok := o.allowedContentTypes[mediaType]
	return ok
}
