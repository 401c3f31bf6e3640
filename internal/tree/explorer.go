package tree

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nao1215/wikimirror/internal/model"
)

// childrenPath is the tree widget's AJAX endpoint.
const childrenPath = "/plugins/pagetree/naturalchildren.action"

// Mode selects how a fragment is interpreted.
type Mode int

const (
	// ModeRoot means the fragment came from the initial discovery call:
	// locate the current page inside it before descending.
	ModeRoot Mode = iota

	// ModeExpand means the fragment lists the children of one expanded
	// node; every link is a sibling.
	ModeExpand
)

// Request describes one tree endpoint call the crawl engine should issue.
type Request struct {
	// URL is the complete GET URL.
	URL string

	// Mode selects fragment interpretation.
	Mode Mode

	// LocatePageID is the page to locate in the fragment (root mode only).
	LocatePageID string

	// Depth travels with the request: it is the DepthInfo the fragment's
	// sibling nodes will be emitted at.
	Depth model.DepthInfo
}

// DecorateRequest marks an HTTP request the way the tree widget does.
// The endpoint answers differently (or not at all) without the AJAX header.
func DecorateRequest(req *http.Request) {
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
}

// Explorer builds tree endpoint requests and parses the fragments they
// return, for one wiki site.
type Explorer struct {
	base   string
	logger *slog.Logger
}

// NewExplorer creates an Explorer for the site origin, e.g.
// "https://wiki.example.com".
func NewExplorer(base string, logger *slog.Logger) *Explorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explorer{base: base, logger: logger}
}

// fixedQuery returns the query parameters the widget always sends.
func fixedQuery() url.Values {
	return url.Values{
		"decorator":     {"none"},
		"excerpt":       {"false"},
		"sort":          {"position"},
		"reverse":       {"false"},
		"disableLinks":  {"false"},
		"expandCurrent": {"true"},
		"hasRoot":       {"true"},
		"treeId":        {"0"},
	}
}

// RootRequest builds the initial discovery call from the parameters found
// on the start page. The returned fragment is parsed in root mode to locate
// the start page within the space tree.
func (e *Explorer) RootRequest(p Params) Request {
	q := fixedQuery()
	q.Set("pageId", p.RootPageID)
	q.Set("startDepth", p.StartDepth)
	q.Set("mobile", p.Mobile)
	q.Set("treePageId", p.TreePageID)
	for _, a := range p.Ancestors {
		q.Add("ancestors", a)
	}

	return Request{
		URL:          e.base + childrenPath + "?" + q.Encode(),
		Mode:         ModeRoot,
		LocatePageID: p.TreePageID,
		Depth:        model.RootDepth(),
	}
}

// ExpandRequest builds the children call for one collapsed node. depth must
// already be descended by the caller: it is the DepthInfo of the children,
// with the expanding node's own output path as parent.
func (e *Explorer) ExpandRequest(pageID string, p Params, depth model.DepthInfo) Request {
	q := fixedQuery()
	q.Set("pageId", pageID)
	q.Set("startDepth", p.StartDepth)
	q.Set("mobile", p.Mobile)
	q.Set("treePageId", p.TreePageID)
	// Cache buster, same as the widget's jQuery transport.
	q.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))

	return Request{
		URL:   e.base + childrenPath + "?" + q.Encode(),
		Mode:  ModeExpand,
		Depth: depth,
	}
}

// PageURL returns the canonical view URL for a page id.
func (e *Explorer) PageURL(pageID string) string {
	return e.base + "/pages/viewpage.action?pageId=" + url.QueryEscape(pageID)
}
