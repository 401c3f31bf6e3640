package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nao1215/wikimirror/internal/model"
)

// illegalTitleChars matches the characters that cannot appear in a
// filename on common filesystems.
var illegalTitleChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeTitle replaces filesystem-illegal characters in a page title
// with underscores. Applying it twice yields the same result as once, so
// already-sanitized titles pass through unchanged.
func SanitizeTitle(title string) string {
	return illegalTitleChars.ReplaceAllString(title, "_")
}

// Document is one mirrored page ready to be written to disk.
type Document struct {
	// Title is the raw page title. It becomes the top-level heading and,
	// sanitized, the document filename.
	Title string

	// Content is the final Markdown body.
	Content string

	// OutputPath is the page's relative directory from tree discovery.
	// Empty for a page mirrored without a navigation tree.
	OutputPath string

	// Attachments are the downloaded attachments to persist next to the
	// document.
	Attachments []model.Attachment
}

// ExportedDocument describes what Export wrote.
type ExportedDocument struct {
	// Path is the document path relative to the output directory, with
	// forward slashes.
	Path string

	// Attachments counts raw attachment files written.
	Attachments int

	// Texts counts extracted-text sibling files written.
	Texts int
}

// Exporter writes mirrored pages under {outputDir}/markdown.
type Exporter struct {
	outputDir string
	root      string
	logger    *slog.Logger
}

// NewExporter returns an Exporter rooted at outputDir.
func NewExporter(outputDir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		outputDir: outputDir,
		root:      filepath.Join(outputDir, "markdown"),
		logger:    logger,
	}
}

// ResolveDir creates and returns the directory a page is exported into:
// the tree-derived relative path when present, otherwise a directory named
// after the sanitized title. Creation is idempotent and never removes
// anything already there.
func (e *Exporter) ResolveDir(sanitizedTitle, outputPath string) (string, error) {
	dir := filepath.Join(e.root, filepath.FromSlash(outputPath))
	if outputPath == "" {
		dir = filepath.Join(e.root, sanitizedTitle)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return dir, nil
}

// Export writes the document, its raw attachments, and their extracted-text
// siblings. The attachments/ subdirectory is created only when the page
// actually has attachments.
func (e *Exporter) Export(doc Document) (ExportedDocument, error) {
	var exported ExportedDocument

	safeTitle := SanitizeTitle(doc.Title)
	dir, err := e.ResolveDir(safeTitle, doc.OutputPath)
	if err != nil {
		return exported, err
	}

	if len(doc.Attachments) > 0 {
		attDir := filepath.Join(dir, "attachments")
		if err := os.MkdirAll(attDir, 0750); err != nil {
			return exported, fmt.Errorf("create attachments directory %s: %w", attDir, err)
		}
		for _, att := range doc.Attachments {
			if err := os.WriteFile(filepath.Join(attDir, att.Ref.Filename), att.Data, 0600); err != nil {
				return exported, fmt.Errorf("write attachment %s: %w", att.Ref.Filename, err)
			}
			exported.Attachments++

			if att.HasText() {
				if err := os.WriteFile(filepath.Join(attDir, att.TextName), []byte(att.Text), 0600); err != nil {
					return exported, fmt.Errorf("write attachment text %s: %w", att.TextName, err)
				}
				exported.Texts++
			}
		}
	}

	docPath := filepath.Join(dir, safeTitle+".md")
	if err := os.WriteFile(docPath, []byte(buildDocument(doc)), 0600); err != nil {
		return exported, fmt.Errorf("write document %s: %w", docPath, err)
	}

	rel, err := filepath.Rel(e.outputDir, docPath)
	if err != nil {
		rel = docPath
	}
	exported.Path = filepath.ToSlash(rel)

	e.logger.Debug("exported page",
		"document", exported.Path,
		"attachments", exported.Attachments,
		"texts", exported.Texts)
	return exported, nil
}

// buildDocument assembles the Markdown file: heading, body, and an
// attachment section listing relative links when the page has attachments.
func buildDocument(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", doc.Title, doc.Content)

	if len(doc.Attachments) > 0 {
		b.WriteString("\n## 附件\n\n")
		for _, att := range doc.Attachments {
			fmt.Fprintf(&b, "- [%s](attachments/%s)\n", att.Ref.Filename, att.Ref.Filename)
		}
	}
	return b.String()
}
