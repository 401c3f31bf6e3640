package tree

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/wikimirror/internal/model"
)

// Expansion is a follow-up children call for a collapsed node. Depth is
// already descended: it is where the node's children will be emitted.
type Expansion struct {
	PageID string
	Depth  model.DepthInfo
}

// Parsed is the outcome of parsing one tree fragment.
type Parsed struct {
	// Nodes are the discovered pages in document order.
	Nodes []model.TreeNode

	// Expansions are the follow-up tree calls for collapsed children.
	Expansions []Expansion

	// Skipped counts fragment entries dropped for missing ids or titles.
	Skipped int
}

// ParseFragment interprets a tree fragment returned by the children
// endpoint.
//
// In expansion mode every page link in the fragment is a sibling at the
// request's depth; links whose list item carries a collapsed child-toggle
// additionally yield an expansion one level down.
//
// In root mode the fragment is the space tree around the start page: the
// entry matching req.LocatePageID is emitted as the single root node and
// expanded, and everything else (ancestors, ancestor siblings) is ignored.
// ErrRootNotFound is returned when the start page is absent entirely.
//
// Malformed entries never abort the fragment: they are logged, counted in
// Skipped, and their siblings continue.
func (e *Explorer) ParseFragment(fragment string, req Request) (Parsed, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Parsed{}, fmt.Errorf("parse tree fragment: %w", err)
	}

	anchors := doc.Find(`a[href*="viewpage.action"]`)

	if req.Mode == ModeRoot {
		return e.parseRoot(anchors, req)
	}
	return e.parseSiblings(anchors, req), nil
}

// parseSiblings handles expansion mode: each link is a sibling node.
func (e *Explorer) parseSiblings(anchors *goquery.Selection, req Request) Parsed {
	var out Parsed
	anchors.Each(func(_ int, a *goquery.Selection) {
		node, ok := e.buildNode(a, req.Depth)
		if !ok {
			out.Skipped++
			return
		}
		out.Nodes = append(out.Nodes, node)
		if node.HasChildren {
			out.Expansions = append(out.Expansions, Expansion{
				PageID: node.PageID,
				Depth:  req.Depth.Descend(node.OutputPath()),
			})
		}
	})
	return out
}

// parseRoot handles root mode: locate the start page among the links and
// emit it alone, expanded.
func (e *Explorer) parseRoot(anchors *goquery.Selection, req Request) (Parsed, error) {
	var out Parsed
	var found bool

	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if pageIDFromHref(href) != req.LocatePageID {
			return true
		}
		node, ok := e.buildNode(a, req.Depth)
		if !ok {
			out.Skipped++
			return true
		}
		// The start page is always expanded: whether it has children is
		// only knowable from the follow-up call, and an empty fragment
		// back is harmless.
		node.HasChildren = true
		out.Nodes = append(out.Nodes, node)
		out.Expansions = append(out.Expansions, Expansion{
			PageID: node.PageID,
			Depth:  req.Depth.Descend(node.OutputPath()),
		})
		found = true
		return false
	})

	if !found {
		return Parsed{}, ErrRootNotFound
	}
	return out, nil
}

// buildNode turns one page link into a TreeNode. ok is false when the link
// is missing its id or title; the caller logs the skip via the counter and
// moves on.
func (e *Explorer) buildNode(a *goquery.Selection, depth model.DepthInfo) (model.TreeNode, bool) {
	href, hasHref := a.Attr("href")
	if !hasHref {
		e.logger.Warn("tree entry without href skipped")
		return model.TreeNode{}, false
	}
	pageID := pageIDFromHref(href)
	title := strings.TrimSpace(a.Text())
	if pageID == "" || title == "" {
		e.logger.Warn("tree entry missing id or title skipped", "href", href)
		return model.TreeNode{}, false
	}

	// The nearest list item owns the child toggle; its first toggle in
	// document order is its own, nested ones come later.
	toggle := a.Closest("li").Find("a.plugin_pagetree_childtoggle").First()
	hasChildren := toggle.HasClass("aui-iconfont-chevron-right")

	return model.TreeNode{
		PageID:      pageID,
		Title:       title,
		Link:        e.resolveHref(href),
		HasChildren: hasChildren,
		Depth:       depth,
	}, true
}

// pageIDFromHref extracts the pageId query parameter from a page link.
func pageIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("pageId")
}

// resolveHref makes fragment links absolute against the site origin.
func (e *Explorer) resolveHref(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		return e.base + "/" + href
	}
	return e.base + href
}
