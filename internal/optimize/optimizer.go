package optimize

import (
	"context"
	"log/slog"

	"github.com/nao1215/wikimirror/internal/config"
)

// Optimizer kinds selectable in configuration.
const (
	KindHTML2MD    = "html2md"
	KindXunfei     = "xunfei"
	KindBaichuan   = "baichuan"
	KindCompatible = "compatible"
)

// Source is one piece of content to normalize into Markdown.
type Source struct {
	// Content is raw HTML or extracted attachment text.
	Content string

	// SourceURL and Title identify where the content came from; they
	// feed the provenance footer.
	SourceURL string
	Title     string

	// StripLeadingWhitespace trims indentation artifacts from the
	// converted result.
	StripLeadingWhitespace bool
}

// Result is an optimizer outcome. There is no error return: on any backend
// failure Content carries the input byte-for-byte, Fallback is set, and
// Err records the cause for the run report.
type Result struct {
	Content  string
	Fallback bool
	Err      error
}

// Optimizer normalizes content into Markdown.
type Optimizer interface {
	Name() string
	Optimize(ctx context.Context, src Source) Result
}

// Streamer is implemented by backends that can yield the result
// incrementally as a lazy delta sequence.
type Streamer interface {
	Stream(ctx context.Context, src Source) (*DeltaStream, error)
}

// New builds the optimizer selected by cfg.Kind. An unknown kind logs a
// warning and returns the deterministic converter: optimizer
// misconfiguration degrades, it never fails a run.
func New(cfg config.OptimizeConfig, logger *slog.Logger) Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case "", KindHTML2MD:
		return NewHTMLToMarkdown(logger)
	case KindXunfei:
		return NewXunfei(cfg, logger)
	case KindBaichuan:
		return NewBaichuan(cfg, logger)
	case KindCompatible:
		return NewCompatible(cfg, logger)
	default:
		logger.Warn("unknown optimizer kind, falling back to html2md", "kind", cfg.Kind)
		return NewHTMLToMarkdown(logger)
	}
}

// fallback keeps the source content unchanged and records why.
func fallback(src Source, err error) Result {
	return Result{Content: src.Content, Fallback: true, Err: err}
}
