package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/wikimirror/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run result in Markdown format.
func (w *MarkdownWriter) Write(result *model.MirrorResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeSummary(md, result)
	w.writePages(md, result)
	w.writeFailures(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.MirrorResult) {
	md.H1("Wiki Mirror Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + result.StartURL + "`"},
			{"Run ID", "`" + result.RunID + "`"},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", result.Duration().Round(time.Second).String()},
			{"Output", "`" + result.OutputDir + "`"},
			{"Status", statusText(result)},
		},
	})
	md.PlainText("")
}

// writeSummary writes the page outcome summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, result *model.MirrorResult) {
	mirrored := result.CountByStatus(model.StatusMirrored)
	unchanged := result.CountByStatus(model.StatusUnchanged)
	failed := result.CountByStatus(model.StatusFailed)

	md.H2("Page Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Mirrored", strconv.Itoa(mirrored)},
			{"Unchanged", strconv.Itoa(unchanged)},
			{"Failed", strconv.Itoa(failed)},
			{"**Total**", "**" + strconv.Itoa(len(result.Pages)) + "**"},
			{"Attachments extracted", strconv.Itoa(result.AttachmentsExtracted())},
			{"Attachments dropped", strconv.Itoa(result.AttachmentsDropped())},
		},
	})
	md.PlainText("")

	if len(result.Pages) > 0 {
		w.writePieChart(md, mirrored, unchanged, failed)
	}

	w.writeAlert(md, result, failed)
}

// writePieChart writes a mermaid pie chart for the page outcome
// distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, mirrored, unchanged, failed int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcome Distribution"),
		piechart.WithShowData(true),
	)

	if mirrored > 0 {
		chart.LabelAndIntValue("Mirrored", uint64(mirrored))
	}
	if unchanged > 0 {
		chart.LabelAndIntValue("Unchanged", uint64(unchanged))
	}
	if failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, result *model.MirrorResult, failed int) {
	fallbacks := 0
	for _, p := range result.Pages {
		if p.OptimizerFallback {
			fallbacks++
		}
	}

	switch {
	case result.Status == model.RunCanceled:
		md.Cautionf("The run was canceled; the mirror on disk is incomplete.")
	case result.Status == model.RunFailed:
		md.Cautionf("The run aborted before any page was mirrored.")
	case failed > 0:
		md.Warningf(
			"%d page(s) failed to mirror. Their previous exports, if any, were left in place.",
			failed,
		)
	case fallbacks > 0:
		md.Importantf(
			"%d page(s) were exported with the plain conversion after the content optimizer failed.",
			fallbacks,
		)
	default:
		md.Tip("All pages mirrored cleanly.")
	}
	md.PlainText("")
}

// writePages writes the mirrored document inventory.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *model.MirrorResult) {
	md.H2("Pages")
	md.PlainText("")

	if len(result.Pages) == 0 {
		md.PlainText("No pages were processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Pages))
	for i, p := range result.Pages {
		doc := p.DocumentPath
		if doc == "" {
			doc = "-"
		}
		rows[i] = []string{
			p.Node.Title,
			p.Status.String(),
			"`" + doc + "`",
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Outcome", "Document"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the failed-page details, one table row per failure.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.MirrorResult) {
	var failed []model.PageResult
	for _, p := range result.Pages {
		if p.Status == model.StatusFailed {
			failed = append(failed, p)
		}
	}
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, p := range failed {
		rows[i] = []string{
			p.Node.Title,
			p.Node.PageID,
			strconv.Itoa(p.Attempts),
			truncateString(p.Error, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Page ID", "Attempts", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [wikimirror](https://github.com/nao1215/wikimirror)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
