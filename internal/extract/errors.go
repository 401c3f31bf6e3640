package extract

import "errors"

var (
	// ErrOCRUnavailable is returned (wrapped) when the tesseract or
	// pdftoppm binary is not installed on the host.
	ErrOCRUnavailable = errors.New("ocr binary not available")

	// ErrNoDocumentPart is returned when a Word attachment has no
	// word/document.xml entry, typically a legacy OLE .doc renamed .docx.
	ErrNoDocumentPart = errors.New("no word/document.xml part in archive")

	// ErrNoSlideParts is returned when a PowerPoint attachment contains
	// no ppt/slides/slide*.xml entries.
	ErrNoSlideParts = errors.New("no slide parts in archive")
)
