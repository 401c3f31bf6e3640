package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nao1215/wikimirror/internal/config"
	"github.com/nao1215/wikimirror/internal/model"
)

// AttachmentResult is the explicit outcome for one attachment: kept (with
// or without extracted text), dropped by a filter, or kept degraded after
// an extraction failure.
type AttachmentResult struct {
	// Attachment is the processed attachment, valid whenever Dropped is
	// DropNone.
	Attachment model.Attachment

	// Dropped names the filter pass that rejected the attachment.
	Dropped DropReason

	// Err records an extraction failure. The attachment is still kept
	// with its raw bytes; only the text is missing.
	Err error
}

// Kept reports whether the attachment survives to export.
func (r AttachmentResult) Kept() bool {
	return r.Dropped == DropNone
}

// Extractor turns downloaded attachment bytes into export-ready
// attachments.
type Extractor struct {
	filter     *Filter
	ocrLang    string
	scratchDir string
	disableOCR bool
	logger     *slog.Logger
}

// NewExtractor builds an Extractor from the attachment configuration.
func NewExtractor(cfg config.ExtractConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		filter:     NewFilter(cfg),
		ocrLang:    cfg.OCRLanguage,
		scratchDir: cfg.ScratchDir,
		disableOCR: cfg.DisableOCR,
		logger:     logger,
	}
}

// Enabled reports whether attachment processing is configured on.
func (e *Extractor) Enabled() bool {
	return e.filter.Enabled()
}

// CheckURL runs the pre-download filter pass for one attachment URL.
func (e *Extractor) CheckURL(rawURL string) Verdict {
	return e.filter.CheckURL(rawURL)
}

// Process runs the post-download half of the attachment pipeline: sniff the
// real type from the bytes, re-apply size and type filters, and extract
// text where a type-specific extractor exists. contentType is the server's
// Content-Type header, consulted only when sniffing is inconclusive.
//
// The bytes pass through a scratch file for the extractors that need a path
// on disk; the file is removed before Process returns, on every path.
func (e *Extractor) Process(ctx context.Context, ref model.AttachmentRef, contentType string, data []byte) AttachmentResult {
	mtype := mimetype.Detect(data)
	mimeStr := resolveMIME(mtype, contentType, ref.Filename)

	if v := e.filter.CheckContent(mimeStr, int64(len(data))); v.Drop {
		e.logger.Info("attachment dropped after download",
			"url", ref.URL, "reason", string(v.Reason), "detail", v.Detail)
		return AttachmentResult{Dropped: v.Reason}
	}

	att := model.Attachment{
		Ref:  ref,
		MIME: mimeStr,
		Size: int64(len(data)),
		Data: data,
	}
	att.Ref.Filename = resolveFilename(ref, mtype)

	scratch, cleanup, err := e.scratchFile(att.Ref.Filename, data)
	if err != nil {
		return AttachmentResult{Attachment: att, Err: fmt.Errorf("scratch file: %w", err)}
	}
	defer cleanup()

	text, supported, err := e.extractText(ctx, scratch, mimeStr)
	if err != nil {
		e.logger.Warn("attachment text extraction failed, keeping raw",
			"file", att.Ref.Filename, "mime", mimeStr, "error", err)
		return AttachmentResult{Attachment: att, Err: err}
	}
	if supported {
		att.Text = text
	}
	return AttachmentResult{Attachment: att}
}

// extractText dispatches on the sniffed type. supported is false when no
// extractor covers the type; err means an extractor ran and failed.
//
// Legacy OLE types (application/msword, application/vnd.ms-powerpoint)
// match the word/powerpoint branches, fail in the zip opener, and degrade.
func (e *Extractor) extractText(ctx context.Context, path, mimeStr string) (text string, supported bool, err error) {
	switch {
	case strings.HasPrefix(mimeStr, "image/"):
		if e.disableOCR {
			return "", false, nil
		}
		text, err = e.ocrImage(ctx, path)
		return text, true, err
	case strings.Contains(mimeStr, "pdf"):
		if e.disableOCR {
			return "", false, nil
		}
		text, err = e.pdfText(ctx, path)
		return text, true, err
	case strings.Contains(mimeStr, "word"):
		text, err = docxText(path)
		return text, true, err
	case strings.Contains(mimeStr, "powerpoint"), strings.Contains(mimeStr, "presentation"):
		text, err = pptxText(path)
		return text, true, err
	}
	return "", false, nil
}

// scratchFile writes data to a temporary file and returns its path plus a
// cleanup that removes it.
func (e *Extractor) scratchFile(name string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp(e.scratchRoot(), "wikimirror-*"+filepath.Ext(name))
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// scratchRoot is where scratch files land; empty config means the system
// temp dir.
func (e *Extractor) scratchRoot() string {
	if e.scratchDir != "" {
		return e.scratchDir
	}
	return os.TempDir()
}

// resolveMIME picks the effective media type: sniffed bytes win, then the
// server header, then the filename extension, then octet-stream.
func resolveMIME(mtype *mimetype.MIME, contentType, filename string) string {
	if sniffed := bareMIME(mtype.String()); sniffed != "" && sniffed != "application/octet-stream" {
		return sniffed
	}
	if ct := bareMIME(contentType); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if byExt := bareMIME(mime.TypeByExtension(ext)); byExt != "" {
			return byExt
		}
	}
	return "application/octet-stream"
}

// resolveFilename settles the on-disk filename: the display name from the
// link, the URL path segment as fallback, a sniffed extension when the
// name has none, and a fixed stand-in when everything else fails.
func resolveFilename(ref model.AttachmentRef, mtype *mimetype.MIME) string {
	name := strings.TrimSpace(ref.Filename)
	if name == "" {
		name = FilenameFromURL(ref.URL)
	}
	if name == "" {
		name = "attachment"
	}
	if filepath.Ext(name) == "" {
		if ext := mtype.Extension(); ext != "" {
			name += ext
		}
	}
	return name
}

// TextFilename returns the sibling filename extracted text is exported
// under: the attachment's base name with an extension for the text's media
// type in place of the original one.
func TextFilename(filename, textMIME string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	switch bareMIME(textMIME) {
	case "text/html":
		return base + ".html"
	case "text/markdown":
		return base + ".md"
	default:
		return base + ".txt"
	}
}
