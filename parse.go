package formstream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Recognized request media types.
const (
	contentTypeFormData   = "multipart/form-data"
	contentTypeMixed      = "multipart/mixed"
	contentTypeURLEncoded = "application/x-www-form-urlencoded"
)

// Parse consumes a request body stream in a single forward pass and returns a
// fully validated payload, or an error from the taxonomy in errors.go. The
// body is never buffered whole: text fields are bounded in memory, file parts
// stream to temp files the caller owns afterwards.
//
// On any failure, every temp file created for this parse is deleted before
// the error returns; a returned payload is always complete and immutable.
//
// Example:
//
//	opts := formstream.MustOptions(
//		formstream.WithRules(formstream.PartRule{Name: "file", Required: true}),
//		formstream.WithSHA256(),
//	)
//	payload, err := formstream.Parse(ctx, body, contentType, opts)
//	if err != nil {
//		// map to 400/413/415 via errors.Is
//	}
//	defer payload.Discard()
func Parse(ctx context.Context, body io.Reader, contentType string, opts *FormOptions) (*Payload, error) {
	if opts == nil {
		var err error
		if opts, err = NewOptions(); err != nil {
			return nil, err
		}
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	if opts.rejectUnknownContentType && !opts.contentTypeAllowed(mediaType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mediaType)
	}

	p := &parser{
		opts:   opts,
		lim:    &limiter{opts: opts},
		sink:   newFileSink(opts),
		fields: newFieldCollector(opts),
		seen:   make(map[string]int),
	}
	src := newBodyReader(ctx, body, opts.maxRequestBodyBytes)

	payload, err := p.dispatch(ctx, src, mediaType, params["boundary"])
	if err != nil {
		p.sink.cleanup(opts)
		opts.log().Debug("formstream: parse failed",
			"content_type", mediaType, "error", err)
		return nil, err
	}
	return payload, nil
}

// ParseRequest is a convenience entry for hosts that hand over the raw
// *http.Request. When the whole body carries a Content-Encoding and no
// upstream middleware decoded it, the body is unwrapped here first; the
// request byte limit then naturally applies to the decoded stream.
func ParseRequest(r *http.Request, opts *FormOptions) (*Payload, error) {
	body := io.Reader(r.Body)
	if enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc != "" {
		dec, err := newDecompressor(body, enc)
		if err != nil {
			return nil, err
		}
		body = dec
	}
	return Parse(r.Context(), body, r.Header.Get("Content-Type"), opts)
}

// parser carries the per-request pipeline state. One parser serves exactly
// one parse; nothing here is shared across requests.
type parser struct {
	opts   *FormOptions
	lim    *limiter
	sink   *fileSink
	fields *fieldCollector
	seen   map[string]int // parts matched per rule name
}

// dispatch picks a parsing strategy from the request media type. Unrecognized
// multipart subtypes fall back to ordered-parts handling unless the options
// reject them; anything else has no strategy at all.
func (p *parser) dispatch(ctx context.Context, body io.Reader, mediaType, boundary string) (*Payload, error) {
	switch {
	case mediaType == contentTypeURLEncoded:
		if err := parseURLEncoded(body, p); err != nil {
			return nil, err
		}
		if err := p.finalize(); err != nil {
			return nil, err
		}
		return &Payload{Named: &NamedPartsPayload{
			Fields: p.fields.values,
			Files:  make(map[string][]*FilePart),
		}}, nil

	case mediaType == contentTypeFormData:
		named, err := p.parseNamed(ctx, body, boundary)
		if err != nil {
			return nil, err
		}
		if err := p.finalize(); err != nil {
			return nil, err
		}
		return &Payload{Named: named}, nil

	case mediaType == contentTypeMixed:
		ordered, err := p.parseOrdered(ctx, body, boundary, 0)
		if err != nil {
			return nil, err
		}
		return &Payload{Ordered: ordered}, nil

	case strings.HasPrefix(mediaType, "multipart/"):
		// Unrecognized multipart subtypes still have a well-defined part
		// structure; treat them as ordered parts unless the route opted in
		// to strict types. A subtype explicitly present in the allow list
		// already passed the check above.
		if p.opts.rejectUnknownContentType && len(p.opts.allowedContentTypes) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mediaType)
		}
		ordered, err := p.parseOrdered(ctx, body, boundary, 0)
		if err != nil {
			return nil, err
		}
		return &Payload{Ordered: ordered}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mediaType)
	}
}

// finalize runs the deferred required-rule check. It fires only after the
// full body was consumed, so every stream-order error has had its chance to
// surface first.
func (p *parser) finalize() error {
	for i := range p.opts.rules {
		rule := &p.opts.rules[i]
		if rule.Required && p.seen[rule.Name] == 0 {
			return fmt.Errorf("%w: %q", ErrMissingRequiredPart, rule.Name)
		}
	}
	return nil
}

// classifyPart matches a part name against the configured rules. Both
// named-parts paths (form-data parts and urlencoded pairs) go through here, so
// multiplicity, the unknown-part policy and the required-rule bookkeeping
// behave identically for either framing. skip reports a part the drop policy
// discards.
func (p *parser) classifyPart(name string) (rule *PartRule, skip bool, err error) {
	rule = p.opts.ruleFor(name)
	if rule == nil {
		switch p.opts.unknownParts {
		case UnknownPartDrop:
			return nil, true, nil
		case UnknownPartReject:
			return nil, false, fmt.Errorf("%w: %q", ErrUnknownPart, name)
		}
		return nil, false, nil
	}

	p.seen[rule.Name]++
	if p.seen[rule.Name] > 1 && !rule.AllowMultiple {
		return nil, false, fmt.Errorf("%w: %q", ErrDuplicatePart, rule.Name)
	}
	return rule, false, nil
}

// parseNamed handles multipart/form-data: parts are keyed by their
// Content-Disposition name and routed to the field collector or the file sink
// according to the configured rules.
func (p *parser) parseNamed(ctx context.Context, body io.Reader, boundary string) (*NamedPartsPayload, error) {
	tok, err := newTokenizer(body, boundary)
	if err != nil {
		return nil, err
	}

	payload := &NamedPartsPayload{
		Fields: p.fields.values,
		Files:  make(map[string][]*FilePart),
	}

	for {
		hdr, partBody, err := tok.next()
		if err == io.EOF {
			return payload, nil
		}
		if err != nil {
			return nil, err
		}
		if err := p.lim.addPart(); err != nil {
			return nil, err
		}

		ph := parsePartHeader(hdr)
		if ph.name == "" {
			if p.opts.unknownParts == UnknownPartDrop {
				continue // tokenizer drains the body on the next call
			}
			return nil, fmt.Errorf("%w: content disposition lacks a name parameter", ErrMissingPartName)
		}

		rule, skip, err := p.classifyPart(ph.name)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		if rule != nil && !rule.allowsContentType(ph.mediaType) {
			return nil, fmt.Errorf("%w: part %q declared %q", ErrUnsupportedPartContentType, ph.name, ph.mediaType)
		}

		reader, err := p.partReader(partBody, &ph)
		if err != nil {
			return nil, err
		}

		switch {
		case ph.isMultipart():
			// RFC 2388 style: a multipart section under a field name groups
			// several files for that name.
			files, err := p.parseNestedFiles(ctx, reader, &ph, rule, 1)
			if err != nil {
				return nil, err
			}
			payload.Files[ph.name] = append(payload.Files[ph.name], files...)

		case ph.isFile():
			res, err := p.sink.consume(ctx, reader, p.lim.partBodyLimit(rule))
			if err != nil {
				return nil, err
			}
			payload.Files[ph.name] = append(payload.Files[ph.name], &FilePart{
				Name:             ph.name,
				OriginalFileName: ph.fileName,
				ContentType:      ph.mediaType,
				Length:           res.length,
				TempPath:         res.path,
				SHA256:           res.sha256,
				Header:           ph.raw,
			})

		default:
			var ruleMax int64
			if rule != nil {
				ruleMax = rule.MaxBytes
			}
			if err := p.fields.consume(ph.name, reader, ruleMax); err != nil {
				return nil, err
			}
		}
	}
}

// parseNestedFiles consumes a multipart section nested under a named part and
// returns its sections as file parts carrying the parent's name. The parent
// rule's byte ceiling applies to each inner file.
func (p *parser) parseNestedFiles(ctx context.Context, body io.Reader, parent *partHeader, rule *PartRule, depth int) ([]*FilePart, error) {
	if depth > p.opts.maxNestingDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrNestingTooDeep, depth, p.opts.maxNestingDepth)
	}
	tok, err := newTokenizer(body, parent.boundary)
	if err != nil {
		return nil, err
	}

	var files []*FilePart
	for {
		hdr, partBody, err := tok.next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		if err := p.lim.addPart(); err != nil {
			return nil, err
		}

		ph := parsePartHeader(hdr)
		if ph.isMultipart() {
			return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrNestingTooDeep, depth+1, p.opts.maxNestingDepth)
		}

		reader, err := p.partReader(partBody, &ph)
		if err != nil {
			return nil, err
		}
		res, err := p.sink.consume(ctx, reader, p.lim.partBodyLimit(rule))
		if err != nil {
			return nil, err
		}

		fileName := ph.fileName
		if fileName == "" {
			fileName = SanitizeFileName("")
		}
		files = append(files, &FilePart{
			Name:             parent.name,
			OriginalFileName: fileName,
			ContentType:      ph.mediaType,
			Length:           res.length,
			TempPath:         res.path,
			SHA256:           res.sha256,
			Header:           ph.raw,
		})
	}
}

// parseOrdered handles multipart/mixed: parts keep their exact wire order and
// all bodies stream to temp files. A part whose content type is itself
// multipart recurses one level per configured nesting depth and carries the
// nested payload instead of a temp file.
func (p *parser) parseOrdered(ctx context.Context, body io.Reader, boundary string, depth int) (*OrderedPartsPayload, error) {
	tok, err := newTokenizer(body, boundary)
	if err != nil {
		return nil, err
	}

	payload := &OrderedPartsPayload{}
	for {
		hdr, partBody, err := tok.next()
		if err == io.EOF {
			return payload, nil
		}
		if err != nil {
			return nil, err
		}
		if err := p.lim.addPart(); err != nil {
			return nil, err
		}

		ph := parsePartHeader(hdr)

		if ph.isMultipart() {
			if depth+1 > p.opts.maxNestingDepth {
				return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrNestingTooDeep, depth+1, p.opts.maxNestingDepth)
			}
			reader, err := p.partReader(partBody, &ph)
			if err != nil {
				return nil, err
			}
			nested, err := p.parseOrdered(ctx, reader, ph.boundary, depth+1)
			if err != nil {
				return nil, err
			}
			payload.Parts = append(payload.Parts, &RawPart{
				Name:        ph.name,
				ContentType: ph.mediaType,
				Nested:      nested,
				Header:      ph.raw,
			})
			continue
		}

		reader, err := p.partReader(partBody, &ph)
		if err != nil {
			return nil, err
		}
		res, err := p.sink.consume(ctx, reader, p.opts.maxPartBodyBytes)
		if err != nil {
			return nil, err
		}
		payload.Parts = append(payload.Parts, &RawPart{
			Name:        ph.name,
			ContentType: ph.mediaType,
			Length:      res.length,
			TempPath:    res.path,
			Header:      ph.raw,
		})
	}
}

// partReader applies the per-part decompression guard when enabled. With
// decompression disabled, encoded bodies pass through untouched and are
// stored as received.
func (p *parser) partReader(body io.Reader, ph *partHeader) (io.Reader, error) {
	if !p.opts.enablePartDecompression || ph.encoding == "" {
		return body, nil
	}
	return decodeBody(body, ph.encoding, p.opts.maxDecompressedBytes)
}
