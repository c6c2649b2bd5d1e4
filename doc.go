// Package formstream parses HTTP request bodies into structured, queryable
// payloads without ever buffering the whole body in memory.
//
// Three wire formats are recognized: multipart/form-data (named parts),
// multipart/mixed (ordered, possibly unnamed parts), and
// application/x-www-form-urlencoded. One level of multipart nesting is
// tolerated by default. Text fields accumulate in bounded memory; file parts
// stream to uniquely named temp files the caller owns once the parse returns.
//
// The parser is a single-pass, forward-only pipeline: it never seeks, holds
// bounded lookahead, enforces size and count ceilings while streaming, and
// guards per-part Content-Encoding against decompression bombs. Every failure
// path removes the temp files created so far, so a parse either returns a
// complete payload or nothing.
//
// Basic Usage:
//
//	opts := formstream.MustOptions(
//		formstream.WithUploadDir("/var/uploads/tmp"),
//		formstream.WithSHA256(),
//		formstream.WithRules(
//			formstream.PartRule{Name: "avatar", Required: true, AllowedContentTypes: []string{"image/png", "image/jpeg"}},
//			formstream.PartRule{Name: "caption"},
//		),
//	)
//
//	payload, err := formstream.ParseRequest(r, opts)
//	if err != nil {
//		switch {
//		case errors.Is(err, formstream.ErrPartTooLarge),
//			errors.Is(err, formstream.ErrRequestTooLarge):
//			// 413
//		case errors.Is(err, formstream.ErrUnsupportedContentType):
//			// 415
//		default:
//			// 400
//		}
//		return
//	}
//	defer payload.Discard()
//
//	caption := payload.Named.FieldValue("caption")
//	avatar := payload.Named.File("avatar")
//
// Routes that persist accepted uploads hand the returned file parts to the
// storage subpackage, which moves them out of the temp directory or uploads
// them to S3-compatible object storage.
package formstream
