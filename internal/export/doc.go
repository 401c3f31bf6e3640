// Package export writes mirrored pages to the local filesystem as Markdown
// documents with their attachments alongside.
//
// # Layout
//
// Documents live under {outputDir}/markdown. A page discovered through the
// navigation tree is written into its depth-prefixed relative directory
// ("00-Home/01-Setup"); a standalone page falls back to a directory named
// after its sanitized title. The document itself is {sanitizedTitle}.md.
// When a page has attachments, their raw bytes go into an attachments/
// subdirectory next to the document, and every attachment with extracted
// text additionally gets a sibling text file named after the attachment's
// base name with an extension matching the text's media type.
//
// # Collisions
//
// Directory creation is idempotent and export never deletes. Output paths
// are unique as long as sibling titles are unique at each depth; duplicate
// sibling titles collide and the last write wins. Titles are used verbatim
// in directory paths, and only the document filename is sanitized.
package export
