package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/wikimirror/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display at the end of a run.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables per-page detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with per-page document paths.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run result in human-readable format.
func (w *SimpleWriter) Write(result *model.MirrorResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeSummary(&sb, result)
	w.writePages(&sb, result)
	w.writeFailures(&sb, result)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.MirrorResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        WIKI MIRROR REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Start URL: %s\n", result.StartURL))
	sb.WriteString(fmt.Sprintf("Run ID:    %s\n", result.RunID))
	sb.WriteString(fmt.Sprintf("Started:   %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", result.Duration().Round(time.Second)))
	sb.WriteString(fmt.Sprintf("Output:    %s\n", result.OutputDir))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", statusText(result)))
	sb.WriteString("\n")
}

// writeSummary writes the page outcome summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, result *model.MirrorResult) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGE SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  MIRRORED:  %d\n", result.CountByStatus(model.StatusMirrored)))
	sb.WriteString(fmt.Sprintf("  UNCHANGED: %d\n", result.CountByStatus(model.StatusUnchanged)))
	sb.WriteString(fmt.Sprintf("  FAILED:    %d\n", result.CountByStatus(model.StatusFailed)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:     %d pages\n", len(result.Pages)))
	sb.WriteString(fmt.Sprintf("  ATTACHMENTS: %d extracted, %d dropped\n",
		result.AttachmentsExtracted(), result.AttachmentsDropped()))
	sb.WriteString("\n")
}

// writePages writes the per-page document list in verbose mode.
func (w *SimpleWriter) writePages(sb *strings.Builder, result *model.MirrorResult) {
	if !w.verbose {
		return
	}
	if len(result.Pages) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(result.Pages) == 0 {
		sb.WriteString("  No pages processed\n")
	}
	for _, p := range result.Pages {
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", p.Status, p.Node.Title))
		if p.DocumentPath != "" {
			sb.WriteString(fmt.Sprintf("    Document: %s\n", p.DocumentPath))
		}
	}
	sb.WriteString("\n")
}

// writeFailures writes the failed-page section.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, result *model.MirrorResult) {
	var failed []model.PageResult
	for _, p := range result.Pages {
		if p.Status == model.StatusFailed {
			failed = append(failed, p)
		}
	}
	if len(failed) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILED PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(failed) == 0 {
		sb.WriteString("  No failed pages\n\n")
		return
	}

	for _, p := range failed {
		sb.WriteString(fmt.Sprintf("  * %s (pageId %s)\n", p.Node.Title, p.Node.PageID))
		sb.WriteString(fmt.Sprintf("    Attempts: %d\n", p.Attempts))
		if p.Error != "" {
			sb.WriteString(fmt.Sprintf("    Error: %s\n", p.Error))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by wikimirror\n")
	sb.WriteString("https://github.com/nao1215/wikimirror\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
