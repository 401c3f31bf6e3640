// Package tree discovers the wiki page hierarchy through the sidebar
// page-tree endpoint.
//
// # Discovery protocol
//
// A rendered wiki page embeds a hidden fieldset with the identifiers the
// sidebar tree widget needs (root page, start depth, ancestor chain). The
// widget then calls an AJAX endpoint that returns HTML fragments of <li>
// nodes, one level at a time; collapsed nodes carry a toggle that the
// browser clicks to fetch the next level.
//
// This package mimics exactly that browser behavior: ParseTreeParams reads
// the fieldset, RootRequest and ExpandRequest build the same GETs the
// widget would issue, and ParseFragment turns the returned markup into
// sibling nodes plus follow-up expansions. Traversal order and depth
// bookkeeping are the caller's job; the package is purely request-out,
// nodes-in.
package tree
