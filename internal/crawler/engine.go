package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nao1215/wikimirror/internal/auth"
	"github.com/nao1215/wikimirror/internal/config"
	"github.com/nao1215/wikimirror/internal/export"
	"github.com/nao1215/wikimirror/internal/extract"
	"github.com/nao1215/wikimirror/internal/fetch"
	"github.com/nao1215/wikimirror/internal/model"
	"github.com/nao1215/wikimirror/internal/optimize"
	"github.com/nao1215/wikimirror/internal/pipeline"
	"github.com/nao1215/wikimirror/internal/state"
	"github.com/nao1215/wikimirror/internal/tree"
)

// Engine owns one wiki mirror run from preflight to final bookkeeping.
type Engine struct {
	// cfg is the merged run configuration.
	cfg *config.Config

	// client performs all HTTP traffic of the run.
	client *fetch.Client

	// explorer builds and parses tree discovery requests.
	explorer *tree.Explorer

	// optimizer normalizes page bodies and attachment text into Markdown.
	optimizer optimize.Optimizer

	// ledger records runs and page fingerprints. Nil when disabled.
	ledger *state.Ledger

	// limiter paces every request of the run.
	limiter *rate.Limiter

	// outputDir is the absolute mirror root.
	outputDir string

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine and every collaborator it
// builds.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an Engine and its collaborators from the configuration,
// which must already be normalized and validated. The ledger is opened
// here so a broken state path fails before any network traffic; disable
// it in the configuration to run without one.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	client, err := fetch.New(fetch.Options{
		ProxyURL:    cfg.Site.ProxyURL,
		BasicUser:   cfg.Site.BasicUser,
		BasicPass:   cfg.Site.BasicPass,
		PageTimeout: cfg.Crawl.PageTimeout,
		FileTimeout: cfg.Crawl.FileTimeout,
		MaxBodySize: cfg.Crawl.MaxBodySize,
	}, e.logger)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	e.client = client
	e.explorer = tree.NewExplorer(cfg.Site.BaseURL, e.logger)
	e.optimizer = optimize.New(cfg.Optimize, e.logger)

	if !cfg.State.Disable {
		ledger, err := state.Open(cfg.State.DBPath, state.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		e.ledger = ledger
	}

	// One limiter paces the whole run. Tree fragments, pages and
	// attachment downloads all draw from the same budget, matching how a
	// single browser session would hit the site.
	limit := rate.Inf
	if cfg.Crawl.Delay > 0 {
		limit = rate.Every(cfg.Crawl.Delay)
	}
	e.limiter = rate.NewLimiter(limit, 1)

	outputDir, err := filepath.Abs(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	e.outputDir = outputDir

	return e, nil
}

// Close releases the engine's resources. Call it once after Run.
func (e *Engine) Close() error {
	if e.ledger != nil {
		return e.ledger.Close()
	}
	return nil
}

// OutputDir returns the absolute mirror root the run writes under.
func (e *Engine) OutputDir() string {
	return e.outputDir
}

// crawl carries the per-run values every request builder needs. A crawl
// value exists only after authentication succeeded, so no page or tree
// request can ever be built from a pre-login cookie state.
type crawl struct {
	// runID identifies the run in the ledger.
	runID string

	// snapshot is the immutable cookie set every request replays.
	snapshot auth.Snapshot

	// pipeline processes fetched page bodies.
	pipeline *pipeline.Pipeline
}

// Run executes the mirror: preflight, authentication, tree discovery,
// page fan-out, and final bookkeeping. The returned result is non-nil
// even on error and accounts for every page reached before the failure.
//
// One login guards the whole run. A session that dies mid-crawl fails
// the pages that hit it; there is no re-authentication.
func (e *Engine) Run(ctx context.Context) (*model.MirrorResult, error) {
	runID := uuid.NewString()
	result := model.NewMirrorResult(runID, e.cfg.Crawl.StartURL, e.outputDir)

	e.logger.Info("mirror run starting",
		"run_id", runID,
		"start_url", result.StartURL,
		"output_dir", e.outputDir,
	)

	if e.ledger != nil {
		if err := e.ledger.BeginRun(ctx, result); err != nil {
			e.logger.Warn("ledger begin failed", "run_id", runID, "error", err)
		}
	}

	// Attachment extraction stages downloads through scratch files. When
	// no directory is configured, give the run its own and remove it when
	// the run ends, success or not.
	extractCfg := e.cfg.Extract
	if extractCfg.ScratchDir == "" && !extractCfg.SkipAttachments {
		scratch, err := os.MkdirTemp("", "wikimirror-*")
		if err != nil {
			return e.abort(result, fmt.Errorf("create scratch directory: %w", err))
		}
		defer func() {
			if err := os.RemoveAll(scratch); err != nil {
				e.logger.Warn("remove scratch directory failed", "dir", scratch, "error", err)
			}
		}()
		extractCfg.ScratchDir = scratch
	}

	if err := e.preflight(ctx); err != nil {
		return e.abort(result, fmt.Errorf("preflight: %w", err))
	}

	snapshot, err := e.authenticate(ctx)
	if err != nil {
		return e.abort(result, err)
	}

	cr := crawl{
		runID:    runID,
		snapshot: snapshot,
		pipeline: e.buildPipeline(runID, extractCfg),
	}

	startBody, _, err := e.fetchRendered(ctx, result.StartURL, snapshot)
	if err != nil {
		return e.abort(result, fmt.Errorf("fetch start page: %w", err))
	}

	tasks, err := e.discover(ctx, cr, startBody, result)
	if err != nil {
		// Discovery stops early only on cancellation.
		return e.abort(result, err)
	}

	e.logger.Info("tree discovery finished",
		"run_id", runID,
		"pages", len(tasks),
		"root_page_id", result.RootPageID,
	)

	if err := e.mirrorAll(ctx, cr, tasks, result); err != nil {
		return e.abort(result, err)
	}

	e.finish(result, model.RunCompleted)
	return result, nil
}

// preflight verifies the wiki answers at all before the run commits to
// login and traversal. It runs without cookies; an auth rejection still
// proves the site is alive.
func (e *Engine) preflight(ctx context.Context) error {
	req, err := auth.NewRequest(ctx, http.MethodGet, e.cfg.Crawl.StartURL, auth.Snapshot{}, e.cfg.Site.UserAgent)
	if err != nil {
		return err
	}
	return e.client.Preflight(req)
}

// authenticate produces the cookie snapshot for the run: the configured
// raw cookie when one is present, otherwise form login against the wiki.
func (e *Engine) authenticate(ctx context.Context) (auth.Snapshot, error) {
	if e.cfg.Site.Cookie != "" {
		parsed := auth.ParseCookieHeader(e.cfg.Site.Cookie)
		if parsed.IsZero() {
			// Crawling on with an empty snapshot would mirror login screens
			// instead of pages. Fail before any request is made. The raw
			// value stays out of the error; it may be a mistyped secret.
			return auth.Snapshot{}, fmt.Errorf("parse configured cookie: %w", auth.ErrNoCookies)
		}
		snapshot := auth.DefaultSnapshot().Merge(parsed)
		e.logger.Info("using configured cookie, skipping login", "cookies", snapshot.Len())
		return snapshot, nil
	}

	session := auth.NewSession(e.client.HTTPClient(), auth.SessionOptions{
		BaseURL:   e.cfg.Site.BaseURL,
		LoginPath: e.cfg.Site.LoginPath,
		Username:  e.cfg.Site.Username,
		Password:  e.cfg.Site.Password,
		UserAgent: e.cfg.Site.UserAgent,
	}, e.logger)

	snapshot, err := session.Login(ctx, e.cfg.Crawl.StartURL)
	if err != nil {
		return auth.Snapshot{}, fmt.Errorf("login: %w", err)
	}
	return snapshot, nil
}

// buildPipeline assembles the per-run processing pipeline. Built per run
// because the recording step stamps ledger rows with the run id.
func (e *Engine) buildPipeline(runID string, extractCfg config.ExtractConfig) *pipeline.Pipeline {
	extractor := extract.NewExtractor(extractCfg, e.logger)
	exporter := export.NewExporter(e.outputDir, e.logger)

	p := pipeline.New(pipeline.WithLogger(e.logger))
	p.AddSteps(
		pipeline.NewExtractStep(extractor, e.client,
			pipeline.WithExtractUserAgent(e.cfg.Site.UserAgent),
			pipeline.WithExtractMaxBytes(extractCfg.MaxAttachmentMB*1024*1024),
			pipeline.WithExtractLimiter(e.limiter),
			pipeline.WithExtractLogger(e.logger),
		),
		pipeline.NewOptimizeStep(e.optimizer,
			pipeline.WithOptimizeLogger(e.logger),
		),
		pipeline.NewExportStep(exporter,
			pipeline.WithExportSubDir(e.cfg.Output.SubDir),
			pipeline.WithExportLogger(e.logger),
		),
		pipeline.NewRecordStep(e.ledger, runID,
			pipeline.WithRecordLogger(e.logger),
		),
	)
	return p
}

// abort finalizes a run that cannot continue. Cancellation is recorded
// as canceled, everything else as failed; the error passes through to
// the caller either way.
func (e *Engine) abort(result *model.MirrorResult, err error) (*model.MirrorResult, error) {
	status := model.RunFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = model.RunCanceled
	}
	e.finish(result, status)
	return result, err
}

// finish stamps the result and writes the final ledger row. The run
// context may already be dead by the time a canceled run gets here, so
// the ledger write uses its own.
func (e *Engine) finish(result *model.MirrorResult, status string) {
	result.Finish(status)

	if e.ledger != nil {
		if err := e.ledger.FinishRun(context.Background(), result); err != nil {
			e.logger.Warn("ledger finish failed", "run_id", result.RunID, "error", err)
		}
	}

	e.logger.Info("mirror run finished",
		"run_id", result.RunID,
		"status", status,
		"mirrored", result.CountByStatus(model.StatusMirrored),
		"unchanged", result.CountByStatus(model.StatusUnchanged),
		"failed", result.CountByStatus(model.StatusFailed),
		"attachments", result.AttachmentsExtracted(),
		"duration", result.Duration(),
	)
}
