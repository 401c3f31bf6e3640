// Package model defines the core data structures used throughout wikimirror.
//
// This package contains the following main types:
//   - TreeNode: A page discovered in the wiki navigation tree
//   - DepthInfo: Depth and parent-path bookkeeping for tree traversal
//   - PageContent: The parsed body and attachment references of a page
//   - PageResult: The outcome of mirroring a single page
//   - MirrorResult: The aggregate outcome of a whole run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (tree, extract, export, state, crawler,
// report) need to use these types, so centralizing them prevents import
// cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
