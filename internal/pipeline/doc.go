// Package pipeline turns one fetched wiki page into an exported document.
//
// A page moves through fixed stages: content extraction (parse the body,
// download and process attachments), optimization (HTML to Markdown for
// the body and for extracted attachment text), export (write the document
// tree), and recording (the run ledger). Each stage is a Step that
// receives the accumulating Job.
//
// Design decision: We use a pipeline of named steps instead of one large
// function because:
// 1. Steps carry their own configuration and collaborators
// 2. Names give uniform logging around every stage
// 3. The crawler can distinguish "page not rendered yet" from real failures
// 4. Tests can run a single stage against a handcrafted Job
//
// Failure semantics follow the page, not the run: a step error marks this
// page failed and the crawl continues elsewhere. The one special case is
// ErrPageNotReady, which asks the crawler to fetch the same page again.
package pipeline
