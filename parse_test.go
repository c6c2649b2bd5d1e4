package formstream_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/formstream"
)

// newTestOptions builds options rooted at a per-test temp dir so leftover
// temp files are detectable.
func newTestOptions(t *testing.T, extra ...formstream.Option) (*formstream.FormOptions, string) {
	t.Helper()
	dir := t.TempDir()
	opts, err := formstream.NewOptions(append([]formstream.Option{
		formstream.WithUploadDir(dir),
	}, extra...)...)
	require.NoError(t, err)
	return opts, dir
}

func tempFileCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

type formPart struct {
	field    string
	fileName string
	content  []byte
	header   textproto.MIMEHeader
}

func buildMultipart(t *testing.T, mediaType string, parts []formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		var (
			pw  io.Writer
			err error
		)
		switch {
		case p.header != nil:
			pw, err = w.CreatePart(p.header)
		case p.fileName != "":
			pw, err = w.CreateFormFile(p.field, p.fileName)
		default:
			pw, err = w.CreateFormField(p.field)
		}
		require.NoError(t, err)
		_, err = pw.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return &buf, mediaType + "; boundary=" + w.Boundary()
}

func TestParse_FormDataRoundTrip(t *testing.T) {
	t.Parallel()

	opts, dir := newTestOptions(t, formstream.WithSHA256())

	fileA := bytes.Repeat([]byte("binary-content-A"), 1024)
	fileB := []byte("%PDF-1.4 tiny document")

	body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
		{field: "title", content: []byte("quarterly report")},
		{field: "tags", content: []byte("finance")},
		{field: "tags", content: []byte("q3")},
		{field: "attachment", fileName: "a.bin", content: fileA},
		{field: "document", fileName: "report.pdf", content: fileB},
	})

	payload, err := formstream.Parse(context.Background(), body, contentType, opts)
	require.NoError(t, err)
	require.NotNil(t, payload.Named)
	assert.Nil(t, payload.Ordered)

	named := payload.Named
	assert.Equal(t, "quarterly report", named.FieldValue("title"))
	assert.Equal(t, []string{"finance", "q3"}, named.Field("tags"))

	require.Len(t, named.Files, 2)

	att := named.File("attachment")
	require.NotNil(t, att)
	assert.Equal(t, "a.bin", att.OriginalFileName)
	assert.Equal(t, int64(len(fileA)), att.Length)
	wantSum := sha256.Sum256(fileA)
	assert.Equal(t, hex.EncodeToString(wantSum[:]), att.SHA256)

	doc := named.File("document")
	require.NotNil(t, doc)
	assert.Equal(t, "report.pdf", doc.OriginalFileName)
	assert.Equal(t, int64(len(fileB)), doc.Length)

	// Written files match the original bytes.
	data, err := os.ReadFile(att.TempPath)
	require.NoError(t, err)
	assert.Equal(t, fileA, data)

	require.NoError(t, payload.Discard())
	assert.Equal(t, 0, tempFileCount(t, dir))
}

func TestParse_MixedOrderPreserved(t *testing.T) {
	t.Parallel()

	opts, _ := newTestOptions(t)

	body, contentType := buildMultipart(t, "multipart/mixed", []formPart{
		{header: textproto.MIMEHeader{"Content-Type": {"text/plain"}}, content: []byte("hello")},
		{header: textproto.MIMEHeader{"Content-Type": {"application/json"}}, content: []byte(`{"a":1}`)},
		{header: textproto.MIMEHeader{"Content-Type": {"application/octet-stream"}}, content: []byte{0x00, 0xff, 0x10}},
	})

	payload, err := formstream.Parse(context.Background(), body, contentType, opts)
	require.NoError(t, err)
	require.NotNil(t, payload.Ordered)
	defer func() { _ = payload.Discard() }()

	parts := payload.Ordered.Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "text/plain", parts[0].ContentType)
	assert.Equal(t, "application/json", parts[1].ContentType)
	assert.Equal(t, "application/octet-stream", parts[2].ContentType)

	data, err := os.ReadFile(parts[0].TempPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = os.ReadFile(parts[2].TempPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x10}, data)
}

func TestParse_NestedMultipart(t *testing.T) {
	t.Parallel()

	// Inner multipart/mixed section embedded as one part of the outer body.
	buildNested := func(t *testing.T, depth2 bool) (*bytes.Buffer, string) {
		inner, innerType := buildMultipart(t, "multipart/mixed", []formPart{
			{header: textproto.MIMEHeader{"Content-Type": {"text/plain"}}, content: []byte("inner text")},
		})
		if depth2 {
			deeper := inner
			deeperType := innerType
			inner, innerType = buildMultipart(t, "multipart/mixed", []formPart{
				{header: textproto.MIMEHeader{"Content-Type": {deeperType}}, content: deeper.Bytes()},
			})
		}
		return buildMultipart(t, "multipart/mixed", []formPart{
			{header: textproto.MIMEHeader{"Content-Type": {"text/plain"}}, content: []byte("outer text")},
			{header: textproto.MIMEHeader{"Content-Type": {innerType}}, content: inner.Bytes()},
		})
	}

	t.Run("one level of nesting parses", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)
		body, contentType := buildNested(t, false)

		payload, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.NoError(t, err)
		defer func() { _ = payload.Discard() }()

		parts := payload.Ordered.Parts
		require.Len(t, parts, 2)
		assert.Nil(t, parts[0].Nested)
		require.NotNil(t, parts[1].Nested)
		assert.Equal(t, "multipart/mixed", parts[1].ContentType)
		assert.Empty(t, parts[1].TempPath)

		nested := parts[1].Nested.Parts
		require.Len(t, nested, 1)
		data, err := os.ReadFile(nested[0].TempPath)
		require.NoError(t, err)
		assert.Equal(t, []byte("inner text"), data)
	})

	t.Run("second level fails with nesting error", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t)
		body, contentType := buildNested(t, true)

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrNestingTooDeep)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})
}

func TestParse_FormDataNestedFilesUnderOneName(t *testing.T) {
	t.Parallel()

	opts, _ := newTestOptions(t)

	// RFC 2388 style: several files grouped under one field name via a
	// nested multipart/mixed section.
	var inner bytes.Buffer
	iw := multipart.NewWriter(&inner)
	p1, err := iw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`attachment; filename="one.txt"`},
		"Content-Type":        {"text/plain"},
	})
	require.NoError(t, err)
	_, _ = p1.Write([]byte("first file"))
	p2, err := iw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`attachment; filename="two.txt"`},
		"Content-Type":        {"text/plain"},
	})
	require.NoError(t, err)
	_, _ = p2.Write([]byte("second file"))
	require.NoError(t, iw.Close())

	body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
		{header: textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="uploads"`},
			"Content-Type":        {"multipart/mixed; boundary=" + iw.Boundary()},
		}, content: inner.Bytes()},
	})

	payload, err := formstream.Parse(context.Background(), body, contentType, opts)
	require.NoError(t, err)
	defer func() { _ = payload.Discard() }()

	files := payload.Named.Files["uploads"]
	require.Len(t, files, 2)
	assert.Equal(t, "one.txt", files[0].OriginalFileName)
	assert.Equal(t, "two.txt", files[1].OriginalFileName)
	assert.Equal(t, "uploads", files[0].Name)

	data, err := os.ReadFile(files[1].TempPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("second file"), data)
}

func TestParse_Limits(t *testing.T) {
	t.Parallel()

	t.Run("part over limit by one byte fails", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t, formstream.WithMaxPartBodyBytes(1024))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "file", fileName: "big.bin", content: bytes.Repeat([]byte{'x'}, 1025)},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrPartTooLarge)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})

	t.Run("part exactly at limit passes", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t, formstream.WithMaxPartBodyBytes(1024))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "file", fileName: "ok.bin", content: bytes.Repeat([]byte{'x'}, 1024)},
		})

		payload, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.NoError(t, err)
		defer func() { _ = payload.Discard() }()
		assert.Equal(t, int64(1024), payload.Named.File("file").Length)
	})

	t.Run("too many parts", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t, formstream.WithMaxParts(3))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "a", content: []byte("1")},
			{field: "b", content: []byte("2")},
			{field: "c", content: []byte("3")},
			{field: "d", content: []byte("4")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrTooManyParts)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})

	t.Run("request body over total limit", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t, formstream.WithMaxRequestBodyBytes(512))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "file", fileName: "big.bin", content: bytes.Repeat([]byte{'x'}, 4096)},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrRequestTooLarge)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})

	t.Run("field value over limit", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t, formstream.WithMaxFieldValueBytes(16))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "comment", content: bytes.Repeat([]byte{'y'}, 17)},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrFieldValueTooLarge)
	})
}

func TestParse_Rules(t *testing.T) {
	t.Parallel()

	t.Run("missing required part after full body", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t, formstream.WithRules(
			formstream.PartRule{Name: "file", Required: true},
		))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "title", content: []byte("no file here")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrMissingRequiredPart)
	})

	t.Run("stream errors beat missing required part", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t,
			formstream.WithMaxFieldValueBytes(4),
			formstream.WithRules(formstream.PartRule{Name: "file", Required: true}),
		)

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "title", content: []byte("way too long for the limit")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrFieldValueTooLarge)
	})

	t.Run("disallowed part content type", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t, formstream.WithRules(
			formstream.PartRule{Name: "avatar", AllowedContentTypes: []string{"image/png"}},
		))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{header: textproto.MIMEHeader{
				"Content-Disposition": {`form-data; name="avatar"; filename="a.exe"`},
				"Content-Type":        {"application/octet-stream"},
			}, content: []byte("MZ")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrUnsupportedPartContentType)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})

	t.Run("duplicate part without allow multiple", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t, formstream.WithRules(
			formstream.PartRule{Name: "avatar"},
		))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "avatar", fileName: "a.png", content: []byte("png1")},
			{field: "avatar", fileName: "b.png", content: []byte("png2")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrDuplicatePart)
	})

	t.Run("rule max bytes tightens part limit", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t, formstream.WithRules(
			formstream.PartRule{Name: "thumb", MaxBytes: 8},
		))

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "thumb", fileName: "t.png", content: []byte("123456789")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrPartTooLarge)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})

	t.Run("rule max bytes reaches files in a nested section", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t, formstream.WithRules(
			formstream.PartRule{Name: "uploads", MaxBytes: 8},
		))

		var inner bytes.Buffer
		iw := multipart.NewWriter(&inner)
		pw, err := iw.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`attachment; filename="big.txt"`},
			"Content-Type":        {"text/plain"},
		})
		require.NoError(t, err)
		_, _ = pw.Write([]byte("123456789"))
		require.NoError(t, iw.Close())

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{header: textproto.MIMEHeader{
				"Content-Disposition": {`form-data; name="uploads"`},
				"Content-Type":        {"multipart/mixed; boundary=" + iw.Boundary()},
			}, content: inner.Bytes()},
		})

		_, err = formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrPartTooLarge)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})

	t.Run("unknown part rejected under strict policy", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t,
			formstream.WithRules(formstream.PartRule{Name: "known"}),
			formstream.WithUnknownPartPolicy(formstream.UnknownPartReject),
		)

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "surprise", content: []byte("x")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrUnknownPart)
	})

	t.Run("unknown part dropped under drop policy", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t,
			formstream.WithRules(formstream.PartRule{Name: "known"}),
			formstream.WithUnknownPartPolicy(formstream.UnknownPartDrop),
		)

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "surprise", content: []byte("x")},
			{field: "known", content: []byte("kept")},
		})

		payload, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.NoError(t, err)
		assert.Empty(t, payload.Named.Field("surprise"))
		assert.Equal(t, "kept", payload.Named.FieldValue("known"))
		assert.Equal(t, 0, tempFileCount(t, dir))
	})
}

func TestParse_ContentTypeDispatch(t *testing.T) {
	t.Parallel()

	t.Run("unsupported content type", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)
		_, err := formstream.Parse(context.Background(), strings.NewReader("{}"), "application/json", opts)
		require.ErrorIs(t, err, formstream.ErrUnsupportedContentType)
	})

	t.Run("missing boundary parameter", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)
		_, err := formstream.Parse(context.Background(), strings.NewReader(""), "multipart/form-data", opts)
		require.ErrorIs(t, err, formstream.ErrBoundaryNotFound)
	})

	t.Run("empty content type", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)
		_, err := formstream.Parse(context.Background(), strings.NewReader(""), "", opts)
		require.ErrorIs(t, err, formstream.ErrUnsupportedContentType)
	})

	t.Run("unknown multipart subtype falls back to ordered parts", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)

		body, contentType := buildMultipart(t, "multipart/parallel", []formPart{
			{header: textproto.MIMEHeader{"Content-Type": {"text/plain"}}, content: []byte("a")},
		})

		payload, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.NoError(t, err)
		defer func() { _ = payload.Discard() }()
		require.NotNil(t, payload.Ordered)
	})

	t.Run("unknown multipart subtype rejected when strict", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t, formstream.WithRejectUnknownContentType())

		body, contentType := buildMultipart(t, "multipart/parallel", []formPart{
			{header: textproto.MIMEHeader{"Content-Type": {"text/plain"}}, content: []byte("a")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrUnsupportedContentType)
	})
}

func TestParse_Cancellation(t *testing.T) {
	t.Parallel()

	opts, dir := newTestOptions(t)

	body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
		{field: "file", fileName: "f.bin", content: bytes.Repeat([]byte{'z'}, 1<<20)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := formstream.Parse(ctx, body, contentType, opts)
	require.ErrorIs(t, err, formstream.ErrCancelled)
	assert.Equal(t, 0, tempFileCount(t, dir))
}

func TestParse_MalformedBody(t *testing.T) {
	t.Parallel()

	t.Run("missing terminal boundary", func(t *testing.T) {
		t.Parallel()
		opts, dir := newTestOptions(t)

		raw := "--BOUND\r\n" +
			"Content-Disposition: form-data; name=\"f\"; filename=\"f.bin\"\r\n" +
			"\r\n" +
			"payload bytes with no closing marker"

		_, err := formstream.Parse(context.Background(), strings.NewReader(raw),
			"multipart/form-data; boundary=BOUND", opts)
		require.ErrorIs(t, err, formstream.ErrMalformedBoundary)
		assert.Equal(t, 0, tempFileCount(t, dir))
	})

	t.Run("boundary bytes inside content are not a delimiter", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)

		// The delimiter string appears mid-content without the required
		// framing (no trailing CRLF or double dash), then the real
		// terminal follows.
		content := "before \r\n--BOUNDskip after"
		raw := "--BOUND\r\n" +
			"Content-Disposition: form-data; name=\"f\"; filename=\"f.bin\"\r\n" +
			"\r\n" +
			content +
			"\r\n--BOUND--\r\n"

		payload, err := formstream.Parse(context.Background(), strings.NewReader(raw),
			"multipart/form-data; boundary=BOUND", opts)
		require.NoError(t, err)
		defer func() { _ = payload.Discard() }()

		f := payload.Named.File("f")
		require.NotNil(t, f)
		data, err := os.ReadFile(f.TempPath)
		require.NoError(t, err)
		assert.Equal(t, []byte(content), data)
	})

	t.Run("empty multipart body with only terminal marker", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)

		raw := "--BOUND--\r\n"
		payload, err := formstream.Parse(context.Background(), strings.NewReader(raw),
			"multipart/form-data; boundary=BOUND", opts)
		require.NoError(t, err)
		assert.Empty(t, payload.Named.Fields)
		assert.Empty(t, payload.Named.Files)
	})

	t.Run("unnamed part in form-data mode", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{header: textproto.MIMEHeader{"Content-Type": {"text/plain"}}, content: []byte("anonymous")},
		})

		_, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.ErrorIs(t, err, formstream.ErrMissingPartName)
	})
}

func TestParse_LargeBodies(t *testing.T) {
	t.Parallel()

	t.Run("file larger than the lookahead window", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t, formstream.WithSHA256())

		content := make([]byte, 3<<20)
		for i := range content {
			content[i] = byte(i % 251)
		}

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "blob", fileName: "blob.bin", content: content},
		})

		payload, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.NoError(t, err)
		defer func() { _ = payload.Discard() }()

		f := payload.Named.File("blob")
		require.NotNil(t, f)
		assert.Equal(t, int64(len(content)), f.Length)
		wantSum := sha256.Sum256(content)
		assert.Equal(t, hex.EncodeToString(wantSum[:]), f.SHA256)
	})

	t.Run("content riddled with partial delimiters", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)

		// Repeated CRLF-dash-dash runs force the scanner to hold back and
		// re-examine potential delimiter prefixes across reads.
		content := bytes.Repeat([]byte("\r\n--almost\r\n----\r\n"), 2000)

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "tricky", fileName: "tricky.bin", content: content},
		})

		payload, err := formstream.Parse(context.Background(), body, contentType, opts)
		require.NoError(t, err)
		defer func() { _ = payload.Discard() }()

		data, err := os.ReadFile(payload.Named.File("tricky").TempPath)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})
}

func TestParseRequest(t *testing.T) {
	t.Parallel()

	t.Run("plain request", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "name", content: []byte("value")},
		})
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)

		payload, err := formstream.ParseRequest(req, opts)
		require.NoError(t, err)
		assert.Equal(t, "value", payload.Named.FieldValue("name"))
	})

	t.Run("gzip encoded request body", func(t *testing.T) {
		t.Parallel()
		opts, _ := newTestOptions(t)

		body, contentType := buildMultipart(t, "multipart/form-data", []formPart{
			{field: "name", content: []byte("compressed")},
		})

		var compressed bytes.Buffer
		zw := gzip.NewWriter(&compressed)
		_, err := zw.Write(body.Bytes())
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		req := httptest.NewRequest(http.MethodPost, "/upload", &compressed)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Encoding", "gzip")

		payload, err := formstream.ParseRequest(req, opts)
		require.NoError(t, err)
		assert.Equal(t, "compressed", payload.Named.FieldValue("name"))
	})
}
