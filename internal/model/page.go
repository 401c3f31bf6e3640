package model

// PageContent holds the parsed body of a wiki page together with the
// attachment references discovered inside it.
type PageContent struct {
	// PageID is the numeric page identifier.
	PageID string `json:"page_id"`
	// Title is the page title taken from the rendered page (falling back to
	// the tree title when the page carries none).
	Title string `json:"title"`
	// SourceURL is the canonical URL the page was fetched from.
	SourceURL string `json:"source_url"`
	// BodyHTML is the inner HTML of the main content container, before any
	// Markdown conversion.
	BodyHTML string `json:"-"`
	// Attachments lists the attachment references found in the body, in
	// document order.
	Attachments []AttachmentRef `json:"attachments,omitempty"`
}

// AttachmentRef identifies one attachment linked from a page body.
type AttachmentRef struct {
	// URL is the absolute download URL.
	URL string `json:"url"`
	// Filename is the decoded display filename from the link.
	Filename string `json:"filename"`
}

// Attachment is a processed attachment ready for export. The raw bytes are
// carried in memory between extraction and export; the scratch file they
// were downloaded to is removed as soon as extraction finishes.
type Attachment struct {
	// Ref is the originating reference.
	Ref AttachmentRef `json:"ref"`
	// MIME is the detected media type of the downloaded bytes. Detection by
	// content sniffing wins over server headers and filename extensions.
	MIME string `json:"mime"`
	// Size is the downloaded size in bytes.
	Size int64 `json:"size"`
	// Data is the raw downloaded content, persisted next to the document
	// at export time.
	Data []byte `json:"-"`
	// Text is the extracted text. Empty when extraction produced nothing
	// usable.
	Text string `json:"-"`
	// TextMIME is the media type of Text: text/markdown after a
	// successful optimizer pass, text/plain when the optimizer fell back.
	TextMIME string `json:"text_mime,omitempty"`
	// TextName is the filename the extracted text is exported under, a
	// sibling name derived from the original filename.
	TextName string `json:"text_name,omitempty"`
}

// HasText reports whether extraction produced usable text for export.
func (a Attachment) HasText() bool {
	return a.Text != "" && a.TextName != ""
}
