package crawler

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/wikimirror/internal/auth"
	"github.com/nao1215/wikimirror/internal/extract"
	"github.com/nao1215/wikimirror/internal/fetch"
	"github.com/nao1215/wikimirror/internal/model"
	"github.com/nao1215/wikimirror/internal/pipeline"
	"github.com/nao1215/wikimirror/internal/state"
)

// mirrorAll fans page mirroring out over the discovered tasks with a
// bounded worker pool. The results slice keeps discovery order no matter
// which worker finishes first. Page failures never stop the pool; the
// only error returned is cancellation.
func (e *Engine) mirrorAll(ctx context.Context, cr crawl, tasks []pageTask, result *model.MirrorResult) error {
	results := make([]model.PageResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Crawl.Concurrency)
	for i, task := range tasks {
		i, task := i, task // per-iteration copies for the goroutine below
		g.Go(func() error {
			results[i] = e.mirrorPage(gctx, cr, task)
			return nil
		})
	}
	_ = g.Wait()

	// A canceled run keeps what it reached. Slots whose page was never
	// classified stay out of the result entirely: interrupted is not
	// failed.
	for _, r := range results {
		if r.Status != "" {
			result.Pages = append(result.Pages, r)
		}
	}
	return ctx.Err()
}

// mirrorPage fetches one page, decides whether it changed since the last
// run, and hands it to the pipeline. Every outcome is classified in the
// returned result; a canceled context returns a zero result instead.
func (e *Engine) mirrorPage(ctx context.Context, cr crawl, task pageTask) model.PageResult {
	node := task.node

	body, attempts, err := e.fetchRendered(ctx, node.Link, cr.snapshot)
	if err != nil {
		if ctx.Err() != nil {
			return model.PageResult{}
		}
		return e.failPage(ctx, cr, node, attempts, err)
	}

	fingerprint := state.Fingerprint([]byte(body))

	if e.cfg.Crawl.Resume && e.ledger != nil {
		unchanged, err := e.ledger.Unchanged(ctx, node.PageID, fingerprint)
		if err != nil {
			e.logger.Warn("resume lookup failed, mirroring anyway",
				"page_id", node.PageID, "error", err)
		} else if unchanged {
			e.logger.Info("page unchanged, skipping export",
				"page_id", node.PageID, "title", node.Title)
			res := model.PageResult{
				Node:        node,
				Status:      model.StatusUnchanged,
				Attempts:    attempts,
				Fingerprint: fingerprint,
			}
			e.record(ctx, cr, res)
			return res
		}
	}

	job := &pipeline.Job{
		Node:       node,
		Snapshot:   cr.snapshot,
		Body:       body,
		OutputPath: task.outputPath,
	}
	job.Result.Attempts = attempts
	job.Result.Fingerprint = fingerprint

	if err := cr.pipeline.Execute(ctx, job); err != nil {
		if ctx.Err() != nil {
			return model.PageResult{}
		}
		return e.failPage(ctx, cr, node, attempts, err)
	}

	e.logger.Info("page mirrored",
		"page_id", node.PageID,
		"title", job.Result.Node.Title,
		"document", job.Result.DocumentPath,
	)
	return job.Result
}

// failPage classifies a terminal page failure and writes its ledger row.
// The fingerprint stays empty so a later resume run never mistakes the
// failed fetch for the last good content.
func (e *Engine) failPage(ctx context.Context, cr crawl, node model.TreeNode, attempts int, err error) model.PageResult {
	e.logger.Warn("page failed",
		"page_id", node.PageID,
		"title", node.Title,
		"attempts", attempts,
		"error", err,
	)
	res := model.PageResult{
		Node:     node,
		Status:   model.StatusFailed,
		Attempts: attempts,
		Error:    err.Error(),
	}
	e.record(ctx, cr, res)
	return res
}

// record writes one page row, tolerating ledger failures. Pages that go
// through the full pipeline are recorded by its final step instead.
func (e *Engine) record(ctx context.Context, cr crawl, res model.PageResult) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.RecordPage(ctx, cr.runID, res); err != nil {
		e.logger.Warn("ledger record failed", "page_id", res.Node.PageID, "error", err)
	}
}

// fetchRendered GETs a page and keeps re-requesting it while the server
// answers with the unrendered shell document. Transient failures retry
// up to the crawl budget; shell responses are bounded separately by the
// render-wait limit and do not consume retries. attempts counts every
// request actually issued.
func (e *Engine) fetchRendered(ctx context.Context, pageURL string, snapshot auth.Snapshot) (string, int, error) {
	var attempts, retries, renderWaits int

	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", attempts, err
		}

		req, err := auth.NewRequest(ctx, http.MethodGet, pageURL, snapshot, e.cfg.Site.UserAgent)
		if err != nil {
			return "", attempts, err
		}

		attempts++
		resp, err := e.client.Page(req)
		if err != nil {
			if fetch.IsRetryable(err) && retries < e.cfg.Crawl.MaxRetries {
				retries++
				e.logger.Debug("retrying page fetch",
					"url", pageURL, "retry", retries, "error", err)
				continue
			}
			return "", attempts, err
		}

		_, ready, err := extract.ParsePage(resp.Body)
		if err != nil {
			return "", attempts, err
		}
		if ready {
			return resp.Body, attempts, nil
		}

		if renderWaits >= e.cfg.Crawl.RenderWaitLimit {
			return "", attempts, fmt.Errorf("page not rendered after %d re-requests", renderWaits)
		}
		renderWaits++
		e.logger.Debug("page not rendered yet, re-requesting",
			"url", pageURL, "wait", renderWaits)
	}
}
