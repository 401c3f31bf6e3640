package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// blankRuns collapses the 3+ newline runs converted block elements leave
// behind.
var blankRuns = regexp.MustCompile(`\n{3,}`)

// HTMLToMarkdown is the deterministic converter: no network, no model, the
// tag structure mapped straight to Markdown.
type HTMLToMarkdown struct {
	conv   *md.Converter
	logger *slog.Logger
	now    func() time.Time
}

// NewHTMLToMarkdown builds the deterministic converter with GitHub-style
// tables and strikethrough enabled.
func NewHTMLToMarkdown(logger *slog.Logger) *HTMLToMarkdown {
	if logger == nil {
		logger = slog.Default()
	}
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &HTMLToMarkdown{conv: conv, logger: logger, now: time.Now}
}

// Name implements Optimizer.
func (h *HTMLToMarkdown) Name() string {
	return KindHTML2MD
}

// Optimize converts HTML to Markdown, collapses excess blank lines, and
// appends the provenance footer. A conversion failure keeps the content
// unchanged, same as every other optimizer.
func (h *HTMLToMarkdown) Optimize(_ context.Context, src Source) Result {
	out, err := h.conv.ConvertString(src.Content)
	if err != nil {
		h.logger.Warn("html conversion failed, keeping original", "error", err)
		return fallback(src, err)
	}
	out = blankRuns.ReplaceAllString(out, "\n\n")
	if src.StripLeadingWhitespace {
		out = strings.TrimLeft(out, " \t\r\n")
	}
	out = strings.TrimRight(out, " \t\r\n")
	out += h.footer(src)
	return Result{Content: out}
}

// footer is the provenance trailer appended to every converted document.
func (h *HTMLToMarkdown) footer(src Source) string {
	return fmt.Sprintf("\n\n---\n*生成时间: %s · 来源: [%s](%s) · wikimirror*",
		h.now().Format(time.RFC3339), src.Title, src.SourceURL)
}
