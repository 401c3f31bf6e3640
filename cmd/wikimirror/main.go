// Package main provides the entry point for the wikimirror CLI.
//
// Wikimirror mirrors an authenticated Confluence-style wiki into a local
// Markdown corpus. It logs in, walks the page tree, converts every page to
// Markdown, and extracts text from attachments alongside each page.
//
// Usage:
//
//	wikimirror mirror <start-url>
//	wikimirror mirror --resume <start-url>
//
// See --help for all available options.
package main

// main is the entry point for wikimirror.
func main() {
	Execute()
}
