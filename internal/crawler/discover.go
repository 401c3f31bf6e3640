package crawler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nao1215/wikimirror/internal/auth"
	"github.com/nao1215/wikimirror/internal/fetch"
	"github.com/nao1215/wikimirror/internal/model"
	"github.com/nao1215/wikimirror/internal/tree"
)

// pageTask pairs a discovered page with the output path its export should
// use. Tree pages carry their hierarchical path; the single-page fallback
// leaves it empty so the exporter derives a directory from the page title.
type pageTask struct {
	node       model.TreeNode
	outputPath string
}

// discover walks the navigation tree breadth-first and returns one task
// per page in document order, filling result.RootPageID on the way. When
// the start page carries no tree, or the tree cannot be read at all, the
// start page alone is returned; some spaces simply have the sidebar
// disabled and are still worth mirroring.
//
// A failed expansion loses that branch and nothing else: siblings already
// queued continue, matching how the site itself degrades when a subtree
// fails to load. The only error discover returns is cancellation.
func (e *Engine) discover(ctx context.Context, cr crawl, startBody string, result *model.MirrorResult) ([]pageTask, error) {
	params, err := tree.ParseTreeParams(startBody)
	if err != nil {
		e.logger.Info("start page has no navigation tree, mirroring it alone", "reason", err)
		return e.startPageOnly(), nil
	}
	result.RootPageID = params.TreePageID

	rootReq := e.explorer.RootRequest(params)
	fragment, err := e.fetchFragment(ctx, rootReq, cr.snapshot)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.logger.Warn("tree discovery failed, mirroring the start page alone", "error", err)
		return e.startPageOnly(), nil
	}

	parsed, err := e.explorer.ParseFragment(fragment, rootReq)
	if err != nil {
		// Root mode fails only when the start page is missing from its
		// own tree; the page itself is still mirrorable.
		e.logger.Warn("start page not found in tree, mirroring it alone", "error", err)
		return e.startPageOnly(), nil
	}

	tasks := make([]pageTask, 0, len(parsed.Nodes))
	seen := make(map[string]bool, len(parsed.Nodes))
	skipped := parsed.Skipped
	var queue []tree.Expansion

	for _, n := range parsed.Nodes {
		seen[n.PageID] = true
		tasks = append(tasks, pageTask{node: n, outputPath: n.OutputPath()})
	}
	queue = append(queue, parsed.Expansions...)

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		exp := queue[0]
		queue = queue[1:]

		if maxDepth := e.cfg.Crawl.MaxDepth; maxDepth > 0 && exp.Depth.Depth > maxDepth {
			e.logger.Debug("depth limit reached, not expanding",
				"page_id", exp.PageID, "depth", exp.Depth.Depth)
			continue
		}

		req := e.explorer.ExpandRequest(exp.PageID, params, exp.Depth)
		fragment, err := e.fetchFragment(ctx, req, cr.snapshot)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			e.logger.Warn("tree expansion failed, skipping branch",
				"page_id", exp.PageID, "error", err)
			continue
		}

		parsed, err := e.explorer.ParseFragment(fragment, req)
		if err != nil {
			e.logger.Warn("tree fragment unreadable, skipping branch",
				"page_id", exp.PageID, "error", err)
			continue
		}
		skipped += parsed.Skipped

		// The tree is assumed acyclic, but a repeated link must never
		// queue the same page twice, and only pages discovered here may
		// carry their expansion forward.
		added := make(map[string]bool, len(parsed.Nodes))
		for _, n := range parsed.Nodes {
			if seen[n.PageID] {
				continue
			}
			seen[n.PageID] = true
			added[n.PageID] = true
			tasks = append(tasks, pageTask{node: n, outputPath: n.OutputPath()})
		}
		for _, next := range parsed.Expansions {
			if added[next.PageID] {
				queue = append(queue, next)
			}
		}
	}

	if skipped > 0 {
		e.logger.Warn("malformed tree entries skipped during discovery", "count", skipped)
	}
	return tasks, nil
}

// fetchFragment GETs one tree fragment with the AJAX marking the tree
// widget uses, retrying transient failures up to the crawl budget.
func (e *Engine) fetchFragment(ctx context.Context, req tree.Request, snapshot auth.Snapshot) (string, error) {
	for attempt := 0; ; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", err
		}

		httpReq, err := auth.NewRequest(ctx, http.MethodGet, req.URL, snapshot, e.cfg.Site.UserAgent)
		if err != nil {
			return "", err
		}
		tree.DecorateRequest(httpReq)

		resp, err := e.client.Page(httpReq)
		if err == nil {
			return resp.Body, nil
		}
		if !fetch.IsRetryable(err) || attempt >= e.cfg.Crawl.MaxRetries {
			return "", err
		}
		e.logger.Debug("retrying tree request",
			"url", req.URL, "attempt", attempt+1, "error", err)
	}
}

// startPageOnly returns the start page as the run's single task.
func (e *Engine) startPageOnly() []pageTask {
	return []pageTask{{
		node: model.TreeNode{
			PageID: pageIDFromURL(e.cfg.Crawl.StartURL),
			Link:   e.cfg.Crawl.StartURL,
			Depth:  model.RootDepth(),
		},
	}}
}

// pageIDFromURL pulls the pageId query parameter out of a view URL, for
// pages mirrored without tree discovery.
func pageIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("pageId")
}
