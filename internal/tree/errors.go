package tree

import "errors"

// Tree discovery errors.
var (
	// ErrNoTree is returned when the page HTML contains no page-tree
	// container. Spaces can disable the sidebar tree entirely.
	ErrNoTree = errors.New("no page tree: container not found in page")

	// ErrTreeParams is returned when the tree fieldset is present but its
	// required identifiers are missing.
	ErrTreeParams = errors.New("incomplete tree parameters in page")

	// ErrRootNotFound is returned by ParseFragment in root mode when the
	// current page does not appear among the returned tree links. The
	// caller falls back to mirroring just the start page.
	ErrRootNotFound = errors.New("current page not found in tree fragment")
)
