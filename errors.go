package formstream

import "errors"

// Parse errors. All of them are terminal for the current parse: a malformed or
// hostile body cannot be retried, so the hosting layer maps these to 4xx
// responses. Match with errors.Is; failure sites add context via %w wrapping.
var (
	// ErrBoundaryNotFound indicates the multipart Content-Type header lacks a
	// boundary parameter.
	ErrBoundaryNotFound = errors.New("missing multipart boundary parameter")

	// ErrMalformedBoundary indicates the body ended or desynchronized before
	// the terminal boundary marker was seen.
	ErrMalformedBoundary = errors.New("malformed multipart body")

	// ErrMissingPartName indicates a part without a name parameter in a mode
	// that requires parts to be matched by name.
	ErrMissingPartName = errors.New("part has no name")

	// ErrUnsupportedPartContentType indicates a part declared a content type
	// outside its rule's allowed set.
	ErrUnsupportedPartContentType = errors.New("part content type not allowed")

	// ErrMissingRequiredPart indicates a required rule matched no part after
	// the full body was consumed.
	ErrMissingRequiredPart = errors.New("required part missing")

	// ErrPartTooLarge indicates a part body exceeded its byte limit.
	ErrPartTooLarge = errors.New("part body too large")

	// ErrFieldValueTooLarge indicates a text field exceeded the field value
	// byte limit.
	ErrFieldValueTooLarge = errors.New("field value too large")

	// ErrDecompressionLimitExceeded indicates a compressed part would inflate
	// past the per-part decompressed byte ceiling.
	ErrDecompressionLimitExceeded = errors.New("decompressed part too large")

	// ErrNestingTooDeep indicates a nested multipart section beyond the
	// configured nesting depth.
	ErrNestingTooDeep = errors.New("multipart nesting too deep")

	// ErrInvalidEncoding indicates a malformed percent escape in urlencoded
	// content or an unrecognized part Content-Encoding.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrUnsupportedContentType indicates a request content type the parser
	// has no strategy for, or one excluded by configuration.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrRequestTooLarge indicates the request body exceeded the total byte
	// limit.
	ErrRequestTooLarge = errors.New("request body too large")

	// ErrTooManyParts indicates the part (or urlencoded pair) count exceeded
	// the limit.
	ErrTooManyParts = errors.New("too many parts")

	// ErrDuplicatePart indicates a second part matched a rule that does not
	// allow multiple values.
	ErrDuplicatePart = errors.New("duplicate part")

	// ErrUnknownPart indicates a part with no matching rule under the reject
	// policy.
	ErrUnknownPart = errors.New("unknown part")

	// ErrCancelled indicates the caller's context was cancelled mid-parse.
	// Temp files created so far are deleted before this is returned.
	ErrCancelled = errors.New("parse cancelled")
)
