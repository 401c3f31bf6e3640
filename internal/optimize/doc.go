// Package optimize normalizes raw HTML and extracted text into Markdown.
//
// # Variants
//
// One deterministic converter (html2md) maps tags straight to Markdown with
// no network involved. Three remote variants send the content to a
// chat-completion backend with a fixed restructuring instruction: xunfei
// (Spark, whose native frame format is adapted into the generic delta
// shape), baichuan, and compatible (any endpoint speaking the standard
// chat-completion wire). A string key in configuration selects the
// variant; an unknown key warns and uses html2md, because a typo in an
// optimizer name should never kill a crawl.
//
// # Fallback contract
//
// Optimize never raises. Whatever goes wrong — no API key, unreachable
// endpoint, malformed response, empty completion — the Result carries the
// input content byte-for-byte with Fallback set and the cause in Err. The
// mirror always produces a document; the report says which pages got the
// degraded version.
//
// # Streaming
//
// Backends that stream expose it as an explicit second shape: Stream
// returns a DeltaStream, a cancellable lazy sequence consumed like a
// bufio.Scanner, instead of a flag changing Optimize's return type.
package optimize
