package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/nao1215/wikimirror/internal/auth"
	"github.com/nao1215/wikimirror/internal/config"
	"github.com/nao1215/wikimirror/internal/export"
	"github.com/nao1215/wikimirror/internal/extract"
	"github.com/nao1215/wikimirror/internal/fetch"
	"github.com/nao1215/wikimirror/internal/model"
	"github.com/nao1215/wikimirror/internal/optimize"
	"github.com/nao1215/wikimirror/internal/state"
)

// ExtractStep parses the fetched page body and processes its attachments.
// A body that is still the server-side render placeholder aborts the
// pipeline with ErrPageNotReady so the crawler can fetch the page again.
//
// Design decision: Attachment downloads happen inside this step rather
// than in the crawler because:
// 1. Filtering needs the parsed attachment references first
// 2. A failed attachment degrades the page, it never fails it
// 3. The crawler's retry budget stays about pages, not files
type ExtractStep struct {
	// extractor filters and processes downloaded attachments.
	extractor *extract.Extractor

	// client performs the attachment downloads.
	client *fetch.Client

	// userAgent is the User-Agent header sent with downloads.
	userAgent string

	// maxBytes caps a single attachment download.
	maxBytes int64

	// limiter, when set, paces attachment downloads alongside everything
	// else the crawl requests.
	limiter *rate.Limiter

	// logger for structured logging.
	logger *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractUserAgent sets the User-Agent header for attachment downloads.
func WithExtractUserAgent(userAgent string) ExtractStepOption {
	return func(s *ExtractStep) {
		s.userAgent = userAgent
	}
}

// WithExtractMaxBytes sets the per-attachment download ceiling in bytes.
func WithExtractMaxBytes(maxBytes int64) ExtractStepOption {
	return func(s *ExtractStep) {
		s.maxBytes = maxBytes
	}
}

// WithExtractLimiter shares the crawl's rate limiter with attachment
// downloads, so files count against the same politeness budget as pages.
// Nil leaves downloads unpaced.
func WithExtractLimiter(limiter *rate.Limiter) ExtractStepOption {
	return func(s *ExtractStep) {
		s.limiter = limiter
	}
}

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates a new content extraction step.
func NewExtractStep(extractor *extract.Extractor, client *fetch.Client, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		extractor: extractor,
		client:    client,
		userAgent: config.DefaultUserAgent,
		maxBytes:  config.DefaultMaxAttachmentMB * 1024 * 1024,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction step.
func (s *ExtractStep) Do(ctx context.Context, job *Job) error {
	page, ready, err := extract.ParsePage(job.Body)
	if err != nil {
		return err
	}
	if !ready {
		return ErrPageNotReady
	}

	job.Page = model.PageContent{
		PageID:    job.Node.PageID,
		Title:     page.Title,
		SourceURL: job.Node.Link,
		BodyHTML:  page.BodyHTML,
	}
	// Some pages render an empty title element; the tree name is better
	// than an empty heading.
	if job.Page.Title == "" {
		job.Page.Title = job.Node.Title
	}

	if !s.extractor.Enabled() {
		return nil
	}

	refs, err := extract.AttachmentLinks(job.Body, job.Node.Link)
	if err != nil {
		// Page export proceeds without attachments.
		s.logger.Warn("attachment discovery failed",
			"page", job.Node.PageID, "error", err)
		return nil
	}
	job.Page.Attachments = refs

	for _, ref := range refs {
		if v := s.extractor.CheckURL(ref.URL); v.Drop {
			s.logger.Info("attachment dropped before download",
				"url", ref.URL, "reason", string(v.Reason), "detail", v.Detail)
			job.Result.AttachmentsDropped++
			continue
		}

		data, contentType, err := s.download(ctx, ref.URL, job.Snapshot)
		if err != nil {
			s.logger.Warn("attachment download failed",
				"url", ref.URL, "error", err)
			job.Result.AttachmentsDropped++
			continue
		}

		res := s.extractor.Process(ctx, ref, contentType, data)
		if !res.Kept() {
			job.Result.AttachmentsDropped++
			continue
		}
		job.Attachments = append(job.Attachments, res.Attachment)
	}

	return nil
}

// download fetches one attachment into memory under the size ceiling.
func (s *ExtractStep) download(ctx context.Context, rawURL string, snapshot auth.Snapshot) ([]byte, string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
	}

	req, err := auth.NewRequest(ctx, http.MethodGet, rawURL, snapshot, s.userAgent)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	info, err := s.client.Download(req, &buf, s.maxBytes)
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), info.ContentType, nil
}

// OptimizeStep normalizes the page body and the extracted attachment text
// into Markdown.
//
// Design decision: Attachment text runs through the same optimizer as the
// page body. A successful pass reclassifies the text as Markdown so the
// export writes an .md sibling; a fallback keeps the raw text and the
// sibling stays .txt. Either way the page never fails here: the optimizer
// contract is content-preserving degradation.
type OptimizeStep struct {
	// optimizer normalizes content into Markdown.
	optimizer optimize.Optimizer

	// logger for structured logging.
	logger *slog.Logger
}

// OptimizeStepOption configures an OptimizeStep.
type OptimizeStepOption func(*OptimizeStep)

// WithOptimizeLogger sets a custom logger for the optimize step.
func WithOptimizeLogger(logger *slog.Logger) OptimizeStepOption {
	return func(s *OptimizeStep) {
		s.logger = logger
	}
}

// NewOptimizeStep creates a new content optimization step.
func NewOptimizeStep(optimizer optimize.Optimizer, opts ...OptimizeStepOption) *OptimizeStep {
	s := &OptimizeStep{
		optimizer: optimizer,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *OptimizeStep) Name() string {
	return "optimize"
}

// Do executes the optimization step.
func (s *OptimizeStep) Do(ctx context.Context, job *Job) error {
	r := s.optimizer.Optimize(ctx, optimize.Source{
		Content:   job.Page.BodyHTML,
		SourceURL: job.Page.SourceURL,
		Title:     job.Page.Title,
	})
	job.Markdown = r.Content
	if r.Fallback {
		job.Result.OptimizerFallback = true
		s.logger.Warn("content optimization fell back",
			"page", job.Node.PageID,
			"optimizer", s.optimizer.Name(),
			"error", r.Err,
		)
	}

	for i := range job.Attachments {
		att := &job.Attachments[i]
		if att.Text == "" {
			continue
		}

		tr := s.optimizer.Optimize(ctx, optimize.Source{
			Content:                att.Text,
			SourceURL:              att.Ref.URL,
			Title:                  att.Ref.Filename,
			StripLeadingWhitespace: true,
		})
		if tr.Fallback {
			att.TextMIME = "text/plain"
			s.logger.Warn("attachment text optimization fell back",
				"file", att.Ref.Filename, "error", tr.Err)
		} else {
			att.Text = tr.Content
			att.TextMIME = "text/markdown"
		}
		att.TextName = extract.TextFilename(att.Ref.Filename, att.TextMIME)
	}

	return nil
}

// ExportStep writes the document, its attachments, and the extracted-text
// siblings under the mirror root.
type ExportStep struct {
	// exporter persists documents.
	exporter *export.Exporter

	// subDir, when set, flattens every page into this single directory
	// instead of the tree-derived hierarchy.
	subDir string

	// logger for structured logging.
	logger *slog.Logger
}

// ExportStepOption configures an ExportStep.
type ExportStepOption func(*ExportStep)

// WithExportSubDir flattens the export into a single named directory.
func WithExportSubDir(subDir string) ExportStepOption {
	return func(s *ExportStep) {
		s.subDir = subDir
	}
}

// WithExportLogger sets a custom logger for the export step.
func WithExportLogger(logger *slog.Logger) ExportStepOption {
	return func(s *ExportStep) {
		s.logger = logger
	}
}

// NewExportStep creates a new export step.
func NewExportStep(exporter *export.Exporter, opts ...ExportStepOption) *ExportStep {
	s := &ExportStep{
		exporter: exporter,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do executes the export step.
func (s *ExportStep) Do(ctx context.Context, job *Job) error {
	path := job.OutputPath
	if s.subDir != "" {
		path = s.subDir
	}

	exp, err := s.exporter.Export(export.Document{
		Title:       job.Page.Title,
		Content:     job.Markdown,
		OutputPath:  path,
		Attachments: job.Attachments,
	})
	if err != nil {
		return err
	}

	job.Result.DocumentPath = exp.Path
	job.Result.AttachmentsExtracted = exp.Texts
	return nil
}

// RecordStep marks the page mirrored and writes it to the run ledger.
//
// Design decision: Ledger failures are logged and swallowed. The mirror on
// disk is the product; losing a fingerprint row costs one redundant export
// on the next resume, which is not worth failing a page over.
type RecordStep struct {
	// ledger is the run ledger. Nil when the ledger is disabled.
	ledger *state.Ledger

	// runID identifies the current run.
	runID string

	// logger for structured logging.
	logger *slog.Logger
}

// RecordStepOption configures a RecordStep.
type RecordStepOption func(*RecordStep)

// WithRecordLogger sets a custom logger for the record step.
func WithRecordLogger(logger *slog.Logger) RecordStepOption {
	return func(s *RecordStep) {
		s.logger = logger
	}
}

// NewRecordStep creates a new ledger recording step. A nil ledger still
// marks pages mirrored; it just records nothing.
func NewRecordStep(ledger *state.Ledger, runID string, opts ...RecordStepOption) *RecordStep {
	s := &RecordStep{
		ledger: ledger,
		runID:  runID,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do executes the recording step.
func (s *RecordStep) Do(ctx context.Context, job *Job) error {
	job.Result.Node = job.Node
	// A page mirrored without tree discovery has no tree title; the parsed
	// one keeps the ledger and report readable.
	if job.Result.Node.Title == "" {
		job.Result.Node.Title = job.Page.Title
	}
	job.Result.Status = model.StatusMirrored

	if s.ledger == nil {
		return nil
	}
	if err := s.ledger.RecordPage(ctx, s.runID, job.Result); err != nil {
		s.logger.Warn("ledger record failed",
			"page", job.Node.PageID, "error", err)
	}
	return nil
}
