package pipeline

import "errors"

// ErrPageNotReady reports that the fetched body is the shell document the
// wiki serves while a page is still rendering server-side. The page has not
// failed; the crawler reissues the identical request after the politeness
// delay.
var ErrPageNotReady = errors.New("page not rendered yet")
