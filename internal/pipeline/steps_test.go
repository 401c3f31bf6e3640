package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/wikimirror/internal/auth"
	"github.com/nao1215/wikimirror/internal/config"
	"github.com/nao1215/wikimirror/internal/export"
	"github.com/nao1215/wikimirror/internal/extract"
	"github.com/nao1215/wikimirror/internal/fetch"
	"github.com/nao1215/wikimirror/internal/model"
	"github.com/nao1215/wikimirror/internal/optimize"
	"github.com/nao1215/wikimirror/internal/state"
)

// fakeOptimizer is a test double for the optimize step. It records the
// sources it received and answers from a canned script.
type fakeOptimizer struct {
	sources []optimize.Source
	result  func(src optimize.Source) optimize.Result
}

func (f *fakeOptimizer) Name() string { return "fake" }

func (f *fakeOptimizer) Optimize(_ context.Context, src optimize.Source) optimize.Result {
	f.sources = append(f.sources, src)
	if f.result != nil {
		return f.result(src)
	}
	return optimize.Result{Content: src.Content}
}

// newTestFetchClient returns a fetch client with short test timeouts.
func newTestFetchClient(t *testing.T) *fetch.Client {
	t.Helper()

	client, err := fetch.New(fetch.Options{
		PageTimeout: 5 * time.Second,
		FileTimeout: 5 * time.Second,
	}, slog.Default())
	if err != nil {
		t.Fatalf("create fetch client: %v", err)
	}
	return client
}

// newTestExtractor returns an extractor with OCR off so tests never shell
// out to tesseract.
func newTestExtractor(cfg config.ExtractConfig) *extract.Extractor {
	cfg.DisableOCR = true
	return extract.NewExtractor(cfg, slog.Default())
}

// TestNewExtractStep tests the ExtractStep constructor.
func TestNewExtractStep(t *testing.T) {
	t.Parallel()

	t.Run("creates with defaults", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(newTestExtractor(config.NewConfig().Extract), newTestFetchClient(t))

		if step.userAgent != config.DefaultUserAgent {
			t.Errorf("expected default user agent, got %q", step.userAgent)
		}
		if step.maxBytes != config.DefaultMaxAttachmentMB*1024*1024 {
			t.Errorf("expected default maxBytes, got %d", step.maxBytes)
		}
		if step.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(
			newTestExtractor(config.NewConfig().Extract),
			newTestFetchClient(t),
			WithExtractUserAgent("test-agent"),
			WithExtractMaxBytes(1024),
		)

		if step.userAgent != "test-agent" {
			t.Errorf("expected custom user agent, got %q", step.userAgent)
		}
		if step.maxBytes != 1024 {
			t.Errorf("expected maxBytes 1024, got %d", step.maxBytes)
		}
	})

	t.Run("Name returns correct value", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(newTestExtractor(config.NewConfig().Extract), newTestFetchClient(t))

		if step.Name() != "extract" {
			t.Errorf("expected name 'extract', got %q", step.Name())
		}
	})
}

// TestExtractStepDo tests the extraction step against rendered page HTML.
func TestExtractStepDo(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrPageNotReady for shell document", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(newTestExtractor(config.NewConfig().Extract), newTestFetchClient(t))
		job := testJob()
		job.Body = `<html><body><div class="loading">渲染中...</div></body></html>`

		err := step.Do(context.Background(), job)

		if !errors.Is(err, ErrPageNotReady) {
			t.Fatalf("expected ErrPageNotReady, got %v", err)
		}
	})

	t.Run("parses title and body", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(newTestExtractor(config.NewConfig().Extract), newTestFetchClient(t))
		job := testJob()
		job.Body = `<html><body>
			<span id="title-text">网络拓扑</span>
			<div id="main-content"><p>机房布线说明。</p></div>
		</body></html>`

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if job.Page.Title != "网络拓扑" {
			t.Errorf("expected title 网络拓扑, got %q", job.Page.Title)
		}
		if !strings.Contains(job.Page.BodyHTML, "机房布线说明。") {
			t.Errorf("body HTML missing content: %q", job.Page.BodyHTML)
		}
		if job.Page.PageID != job.Node.PageID {
			t.Errorf("expected page id %q, got %q", job.Node.PageID, job.Page.PageID)
		}
		if job.Page.SourceURL != job.Node.Link {
			t.Errorf("expected source URL %q, got %q", job.Node.Link, job.Page.SourceURL)
		}
	})

	t.Run("falls back to tree title when page title empty", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(newTestExtractor(config.NewConfig().Extract), newTestFetchClient(t))
		job := testJob()
		job.Body = `<html><body>
			<span id="title-text">  </span>
			<div id="main-content"><p>正文</p></div>
		</body></html>`

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if job.Page.Title != job.Node.Title {
			t.Errorf("expected tree title %q, got %q", job.Node.Title, job.Page.Title)
		}
	})

	t.Run("downloads attachments and drops excluded ones", func(t *testing.T) {
		t.Parallel()

		var pngHits atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/download/attachments/101/notes.bin", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("backup schedule: nightly at 02:00\n"))
		})
		mux.HandleFunc("/download/attachments/101/logo.png", func(w http.ResponseWriter, _ *http.Request) {
			pngHits.Add(1)
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		})
		server := httptest.NewServer(mux)
		t.Cleanup(server.Close)

		step := NewExtractStep(newTestExtractor(config.NewConfig().Extract), newTestFetchClient(t))
		job := testJob()
		job.Node.Link = server.URL + "/pages/viewpage.action?pageId=101"
		job.Snapshot = auth.DefaultSnapshot()
		job.Body = `<html><body>
			<span id="title-text">网络拓扑</span>
			<div id="main-content"><p>正文</p>
				<div class="attachment-content"><a href="/download/attachments/101/notes.bin">notes.bin</a></div>
				<div class="attachment-content"><a href="/download/attachments/101/logo.png">logo.png</a></div>
			</div>
		</body></html>`

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(job.Page.Attachments) != 2 {
			t.Fatalf("expected 2 discovered references, got %d", len(job.Page.Attachments))
		}
		if len(job.Attachments) != 1 {
			t.Fatalf("expected 1 kept attachment, got %d", len(job.Attachments))
		}
		att := job.Attachments[0]
		if att.Ref.Filename != "notes.bin" {
			t.Errorf("expected filename notes.bin, got %q", att.Ref.Filename)
		}
		if att.MIME != "text/plain" {
			t.Errorf("expected sniffed text/plain, got %q", att.MIME)
		}
		if att.Size != int64(len("backup schedule: nightly at 02:00\n")) {
			t.Errorf("unexpected size %d", att.Size)
		}
		if job.Result.AttachmentsDropped != 1 {
			t.Errorf("expected 1 dropped attachment, got %d", job.Result.AttachmentsDropped)
		}
		// The .png is on the default exclusion list and must never be
		// requested at all.
		if pngHits.Load() != 0 {
			t.Errorf("excluded attachment was downloaded %d times", pngHits.Load())
		}
	})

	t.Run("failed download drops attachment and keeps page", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		t.Cleanup(server.Close)

		step := NewExtractStep(newTestExtractor(config.NewConfig().Extract), newTestFetchClient(t))
		job := testJob()
		job.Node.Link = server.URL + "/pages/viewpage.action?pageId=101"
		job.Snapshot = auth.DefaultSnapshot()
		job.Body = `<html><body>
			<span id="title-text">网络拓扑</span>
			<div id="main-content">
				<div class="attachment-content"><a href="/download/attachments/101/gone.bin">gone.bin</a></div>
			</div>
		</body></html>`

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(job.Attachments) != 0 {
			t.Errorf("expected no kept attachments, got %d", len(job.Attachments))
		}
		if job.Result.AttachmentsDropped != 1 {
			t.Errorf("expected 1 dropped attachment, got %d", job.Result.AttachmentsDropped)
		}
	})

	t.Run("skips downloads when attachments disabled", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte("data"))
		}))
		t.Cleanup(server.Close)

		cfg := config.NewConfig().Extract
		cfg.SkipAttachments = true
		step := NewExtractStep(newTestExtractor(cfg), newTestFetchClient(t))

		job := testJob()
		job.Node.Link = server.URL + "/pages/viewpage.action?pageId=101"
		job.Body = `<html><body>
			<span id="title-text">网络拓扑</span>
			<div id="main-content">
				<div class="attachment-content"><a href="/download/attachments/101/notes.bin">notes.bin</a></div>
			</div>
		</body></html>`

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(job.Page.Attachments) != 0 {
			t.Errorf("expected no discovered references, got %d", len(job.Page.Attachments))
		}
		if hits.Load() != 0 {
			t.Errorf("expected no downloads, got %d", hits.Load())
		}
	})
}

// TestOptimizeStepDo tests body and attachment-text optimization.
func TestOptimizeStepDo(t *testing.T) {
	t.Parallel()

	t.Run("converts body with the real converter", func(t *testing.T) {
		t.Parallel()

		step := NewOptimizeStep(optimize.NewHTMLToMarkdown(slog.Default()))
		job := testJob()
		job.Page = model.PageContent{
			Title:     "部署手册",
			SourceURL: "https://wiki.example.com/pages/viewpage.action?pageId=101",
			BodyHTML:  "<h2>安装</h2><p>先执行第一步。</p>",
		}

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(job.Markdown, "## 安装") {
			t.Errorf("expected heading in markdown, got %q", job.Markdown)
		}
		if !strings.Contains(job.Markdown, "先执行第一步。") {
			t.Errorf("expected paragraph in markdown, got %q", job.Markdown)
		}
		if job.Result.OptimizerFallback {
			t.Error("deterministic conversion must not set the fallback flag")
		}
	})

	t.Run("flags fallback and keeps content", func(t *testing.T) {
		t.Parallel()

		opt := &fakeOptimizer{
			result: func(src optimize.Source) optimize.Result {
				return optimize.Result{Content: src.Content, Fallback: true, Err: errors.New("backend down")}
			},
		}
		step := NewOptimizeStep(opt)
		job := testJob()
		job.Page.BodyHTML = "<p>原始内容</p>"

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if job.Markdown != "<p>原始内容</p>" {
			t.Errorf("fallback must keep content unchanged, got %q", job.Markdown)
		}
		if !job.Result.OptimizerFallback {
			t.Error("expected fallback flag on the result")
		}
	})

	t.Run("reclassifies optimized attachment text as markdown", func(t *testing.T) {
		t.Parallel()

		opt := &fakeOptimizer{
			result: func(src optimize.Source) optimize.Result {
				if src.StripLeadingWhitespace {
					return optimize.Result{Content: "# 整理后的文本"}
				}
				return optimize.Result{Content: src.Content}
			},
		}
		step := NewOptimizeStep(opt)
		job := testJob()
		job.Page.BodyHTML = "<p>正文</p>"
		job.Attachments = []model.Attachment{
			{Ref: model.AttachmentRef{Filename: "拓扑说明.pdf"}, Text: "  原始 OCR 文本"},
			{Ref: model.AttachmentRef{Filename: "raw.bin"}},
		}

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		att := job.Attachments[0]
		if att.Text != "# 整理后的文本" {
			t.Errorf("expected optimized text, got %q", att.Text)
		}
		if att.TextMIME != "text/markdown" {
			t.Errorf("expected text/markdown, got %q", att.TextMIME)
		}
		if att.TextName != "拓扑说明.md" {
			t.Errorf("expected 拓扑说明.md, got %q", att.TextName)
		}

		// The attachment without text is left alone.
		if job.Attachments[1].TextName != "" {
			t.Errorf("textless attachment got a text name %q", job.Attachments[1].TextName)
		}

		// Body first, then one call per attachment with text; attachment
		// calls strip leading whitespace, the body call does not.
		if len(opt.sources) != 2 {
			t.Fatalf("expected 2 optimizer calls, got %d", len(opt.sources))
		}
		if opt.sources[0].StripLeadingWhitespace {
			t.Error("body call must not strip leading whitespace")
		}
		if !opt.sources[1].StripLeadingWhitespace {
			t.Error("attachment call must strip leading whitespace")
		}
	})

	t.Run("keeps raw text as plain on attachment fallback", func(t *testing.T) {
		t.Parallel()

		opt := &fakeOptimizer{
			result: func(src optimize.Source) optimize.Result {
				if src.StripLeadingWhitespace {
					return optimize.Result{Content: src.Content, Fallback: true, Err: errors.New("quota exceeded")}
				}
				return optimize.Result{Content: src.Content}
			},
		}
		step := NewOptimizeStep(opt)
		job := testJob()
		job.Page.BodyHTML = "<p>正文</p>"
		job.Attachments = []model.Attachment{
			{Ref: model.AttachmentRef{Filename: "report.docx"}, Text: "原始段落文本"},
		}

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		att := job.Attachments[0]
		if att.Text != "原始段落文本" {
			t.Errorf("fallback must keep raw text, got %q", att.Text)
		}
		if att.TextMIME != "text/plain" {
			t.Errorf("expected text/plain, got %q", att.TextMIME)
		}
		if att.TextName != "report.txt" {
			t.Errorf("expected report.txt, got %q", att.TextName)
		}
		// An attachment fallback does not flag the page body.
		if job.Result.OptimizerFallback {
			t.Error("attachment fallback must not set the page fallback flag")
		}
	})
}

// TestExportStepDo tests document export wiring.
func TestExportStepDo(t *testing.T) {
	t.Parallel()

	t.Run("writes document under tree path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		step := NewExportStep(export.NewExporter(dir, slog.Default()))
		job := testJob()
		job.OutputPath = "00-首页/01-部署手册"
		job.Page.Title = "部署手册"
		job.Markdown = "## 安装\n\n先执行第一步。"

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "markdown/00-首页/01-部署手册/部署手册.md"
		if job.Result.DocumentPath != want {
			t.Errorf("expected document path %q, got %q", want, job.Result.DocumentPath)
		}

		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(want)))
		if err != nil {
			t.Fatalf("read exported document: %v", err)
		}
		if !strings.Contains(string(data), "# 部署手册") {
			t.Errorf("document missing heading: %q", string(data))
		}
	})

	t.Run("subdir overrides tree path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		step := NewExportStep(export.NewExporter(dir, slog.Default()), WithExportSubDir("flat"))
		job := testJob()
		job.OutputPath = "00-首页/01-部署手册"
		job.Page.Title = "部署手册"
		job.Markdown = "正文"

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "markdown/flat/部署手册.md"
		if job.Result.DocumentPath != want {
			t.Errorf("expected document path %q, got %q", want, job.Result.DocumentPath)
		}
	})

	t.Run("counts extracted text files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		step := NewExportStep(export.NewExporter(dir, slog.Default()))
		job := testJob()
		job.Page.Title = "网络拓扑"
		job.Markdown = "正文"
		job.Attachments = []model.Attachment{
			{
				Ref:      model.AttachmentRef{Filename: "拓扑说明.pdf"},
				Data:     []byte("%PDF-1.4"),
				Text:     "# 拓扑说明",
				TextMIME: "text/markdown",
				TextName: "拓扑说明.md",
			},
			{
				Ref:  model.AttachmentRef{Filename: "switch-config.bin"},
				Data: []byte{0x01, 0x02},
			},
		}

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if job.Result.AttachmentsExtracted != 1 {
			t.Errorf("expected 1 extracted text, got %d", job.Result.AttachmentsExtracted)
		}
	})
}

// TestRecordStepDo tests ledger recording.
func TestRecordStepDo(t *testing.T) {
	t.Parallel()

	t.Run("marks page mirrored without a ledger", func(t *testing.T) {
		t.Parallel()

		step := NewRecordStep(nil, "run-1")
		job := testJob()

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Result.Status != model.StatusMirrored {
			t.Errorf("expected status mirrored, got %q", job.Result.Status)
		}
	})

	t.Run("records page in the ledger", func(t *testing.T) {
		t.Parallel()

		ledger, err := state.Open(filepath.Join(t.TempDir(), "state.db"), state.DefaultOptions())
		if err != nil {
			t.Fatalf("open ledger: %v", err)
		}
		t.Cleanup(func() { _ = ledger.Close() })

		step := NewRecordStep(ledger, "run-1")
		job := testJob()
		job.Result.Node = job.Node
		job.Result.Fingerprint = state.Fingerprint([]byte("body"))

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Result.Status != model.StatusMirrored {
			t.Errorf("expected status mirrored, got %q", job.Result.Status)
		}

		unchanged, err := ledger.Unchanged(context.Background(), job.Node.PageID, job.Result.Fingerprint)
		if err != nil {
			t.Fatalf("query ledger: %v", err)
		}
		if !unchanged {
			t.Error("expected recorded fingerprint to match")
		}
	})
}
