package extract

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/wikimirror/internal/config"
)

// DropReason records which filter pass rejected an attachment.
type DropReason string

const (
	// DropNone means the attachment was kept.
	DropNone DropReason = ""

	// DropExtension means the URL's file extension is excluded.
	DropExtension DropReason = "extension"

	// DropMIMEHint means a media type hint embedded in the download URL
	// is excluded.
	DropMIMEHint DropReason = "mime-hint"

	// DropSniffedMIME means the type sniffed from the downloaded bytes
	// is excluded.
	DropSniffedMIME DropReason = "sniffed-mime"

	// DropTooLarge means the downloaded size exceeds the configured
	// ceiling.
	DropTooLarge DropReason = "too-large"

	// DropHTTPStatus means the download answered with a non-200 status.
	DropHTTPStatus DropReason = "http-status"
)

// Verdict is one filter decision. Detail carries the matched value for
// logging.
type Verdict struct {
	Drop   bool
	Reason DropReason
	Detail string
}

// Filter applies the attachment exclusion configuration. Both passes must
// clear for an attachment to survive: CheckURL before the download is
// issued, CheckContent on the sniffed type and measured size afterwards.
type Filter struct {
	enabled    bool
	extensions map[string]bool
	mimeTypes  []string
	maxBytes   int64
}

// NewFilter builds a Filter from the attachment configuration. Extensions
// are normalized lowercase with a leading dot; media types lowercase.
func NewFilter(cfg config.ExtractConfig) *Filter {
	f := &Filter{
		enabled:    !cfg.SkipAttachments,
		extensions: make(map[string]bool, len(cfg.ExcludeExtensions)),
		maxBytes:   cfg.MaxAttachmentMB * 1024 * 1024,
	}
	for _, ext := range cfg.ExcludeExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = true
	}
	for _, m := range cfg.ExcludeMIMETypes {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			f.mimeTypes = append(f.mimeTypes, m)
		}
	}
	return f
}

// Enabled reports whether attachment processing is on at all.
func (f *Filter) Enabled() bool {
	return f.enabled
}

// CheckURL is the pre-download pass: the extension blacklist plus the media
// type hint some download URLs embed as a query parameter. A dropped URL is
// never requested.
func (f *Filter) CheckURL(rawURL string) Verdict {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Unparsable URLs fail at download time with a better error.
		return Verdict{}
	}

	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && f.extensions[ext] {
		return Verdict{Drop: true, Reason: DropExtension, Detail: ext}
	}

	q := u.Query()
	for _, key := range []string{"contentType", "mimeType"} {
		if hint := q.Get(key); hint != "" && f.mimeExcluded(hint) {
			return Verdict{Drop: true, Reason: DropMIMEHint, Detail: bareMIME(hint)}
		}
	}
	return Verdict{}
}

// CheckContent is the post-download pass over the sniffed type and the real
// size. It runs even when the URL pass let the attachment through: servers
// and URLs lie, bytes do not.
func (f *Filter) CheckContent(sniffedMIME string, size int64) Verdict {
	if f.maxBytes > 0 && size > f.maxBytes {
		return Verdict{Drop: true, Reason: DropTooLarge, Detail: fmt.Sprintf("%d bytes", size)}
	}
	if f.mimeExcluded(sniffedMIME) {
		return Verdict{Drop: true, Reason: DropSniffedMIME, Detail: bareMIME(sniffedMIME)}
	}
	return Verdict{}
}

// mimeExcluded matches a media type against the exclusion list. Entries
// ending in "/" match as prefixes ("image/" covers every image type),
// anything else matches exactly.
func (f *Filter) mimeExcluded(mimeType string) bool {
	m := bareMIME(mimeType)
	for _, e := range f.mimeTypes {
		if strings.HasSuffix(e, "/") {
			if strings.HasPrefix(m, e) {
				return true
			}
		} else if m == e {
			return true
		}
	}
	return false
}

// bareMIME lowercases a media type and strips its parameters.
func bareMIME(m string) string {
	m, _, _ = strings.Cut(m, ";")
	return strings.ToLower(strings.TrimSpace(m))
}
