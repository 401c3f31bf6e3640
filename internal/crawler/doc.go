// Package crawler drives a complete mirror run against one wiki site.
//
// # Architecture
//
// The package is built around the Engine type, which owns a run from
// preflight to final bookkeeping. A run has two phases:
//
//  1. Discovery: the navigation tree is walked breadth-first through the
//     tree-children endpoint, one fragment at a time, collecting every
//     page together with its hierarchical output path.
//  2. Mirror: the collected pages fan out over a bounded worker pool;
//     each worker fetches its page and hands the body to the processing
//     pipeline (extract, optimize, export, record).
//
// Design decision: Discovery runs single-threaded and only the finished
// page list fans out because:
//  1. Each fragment response decides what to request next; a fixed list
//     keeps worker lifetime trivial, with no in-flight accounting to
//     decide when a growing queue is done
//  2. The shared rate limiter serializes requests anyway, so parallel
//     discovery would gain nothing
//  3. Results live in a slice indexed by page position, preserving
//     document order without locks
//
// # Politeness
//
// Every request of a run shares one rate limiter configured from the
// crawl delay: tree fragments, page fetches, render-wait re-requests,
// and attachment downloads all draw from the same budget. Transient
// failures (408, 429, 5xx, timeouts, truncated reads) are retried up to
// the configured budget; anything else fails the page or branch it
// belongs to, never the run.
//
// # Usage
//
//	engine, err := crawler.New(cfg, crawler.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	result, err := engine.Run(ctx)
//
// The returned MirrorResult carries one entry per discovered page and is
// what the report and notify layers consume.
package crawler
