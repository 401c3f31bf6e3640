package model

import "fmt"

// DepthInfo tracks where a tree node sits in the page hierarchy. Depth is the
// zero-based distance from the start page, and ParentPath is the relative
// output directory of the parent node ("" for the start page itself).
//
// The pair travels with every queued crawl task so that output paths can be
// computed without consulting shared traversal state.
type DepthInfo struct {
	// Depth is the zero-based tree depth. The start page is depth 0.
	Depth int `json:"depth"`
	// ParentPath is the parent node's relative output directory. Empty for
	// the start page.
	ParentPath string `json:"parent_path,omitempty"`
}

// RootDepth returns the DepthInfo of the start page.
func RootDepth() DepthInfo {
	return DepthInfo{Depth: 0, ParentPath: ""}
}

// Segment returns the path segment for a node with the given title at this
// depth, in the form "NN-title" with the depth zero-padded to two digits.
// Titles are used verbatim; only the final document filename is sanitized at
// export time.
func (d DepthInfo) Segment(title string) string {
	return fmt.Sprintf("%02d-%s", d.Depth, title)
}

// PathFor returns the relative output directory for a node with the given
// title. The start page maps to its bare segment; every deeper node appends
// its segment to the parent path with a forward slash.
func (d DepthInfo) PathFor(title string) string {
	seg := d.Segment(title)
	if d.Depth == 0 || d.ParentPath == "" {
		return seg
	}
	return d.ParentPath + "/" + seg
}

// Descend returns the DepthInfo for children of a node whose own relative
// output directory is nodePath.
func (d DepthInfo) Descend(nodePath string) DepthInfo {
	return DepthInfo{Depth: d.Depth + 1, ParentPath: nodePath}
}

// TreeNode is a single page discovered in the wiki navigation tree.
type TreeNode struct {
	// PageID is the numeric page identifier from the tree markup.
	PageID string `json:"page_id"`
	// Title is the raw page title as displayed in the tree. It may contain
	// characters that are illegal in filenames; sanitization happens at
	// export time.
	Title string `json:"title"`
	// Link is the page URL from the tree markup, resolved against the site
	// base URL.
	Link string `json:"link"`
	// HasChildren reports whether the tree markup showed an expand toggle
	// for this node.
	HasChildren bool `json:"has_children"`
	// Depth places the node in the hierarchy.
	Depth DepthInfo `json:"depth_info"`
}

// OutputPath returns the node's relative output directory under the mirror
// root.
func (n TreeNode) OutputPath() string {
	return n.Depth.PathFor(n.Title)
}
