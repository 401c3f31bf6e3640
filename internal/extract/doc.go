// Package extract parses rendered wiki pages and turns binary attachments
// into text.
//
// # Page parsing
//
// The wiki renders pages asynchronously: a fetch can return a document
// whose title or body container has not been filled in yet. ParsePage
// reports that as "not ready" rather than an error, and the caller reissues
// the identical request until the anchors appear.
//
// # Attachment pipeline
//
// Attachments are filtered twice. Before download only the URL is known, so
// the extension and an embedded media-type hint are checked. After download
// the true type is sniffed from the bytes, which wins over anything the
// server or the URL claimed, and the size and type exclusions are applied
// again. Sniffed Office and PDF types then dispatch to a type-specific
// extractor: images and PDF pages go through tesseract, Word and PowerPoint
// files are unzipped and their text runs collected.
//
// Design decision: extraction failures never fail the page. A corrupt
// attachment, a missing OCR binary, or a legacy OLE .doc that the zip
// opener rejects all degrade to "attachment kept raw, no extracted text",
// with the cause recorded on the result for the run report.
package extract
