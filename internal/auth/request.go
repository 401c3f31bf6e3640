package auth

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// binaryExtensions are the path extensions treated as binary downloads.
// Requests for these get a wildcard Accept header, explicit compression
// support, and are expected to run against the long file timeout.
var binaryExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Accept header values for the two request flavors. The page value is what
// a desktop browser sends for a navigation; the wiki serves different markup
// to clients that don't look like browsers.
const (
	acceptPage   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptBinary = "*/*"

	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// IsBinaryURL reports whether the URL's path extension marks it as a binary
// download. The query string is ignored; only the path decides.
func IsBinaryURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return binaryExtensions[ext]
}

// BuildHeaders returns the base header set for a wiki request: browser-like
// User-Agent and Accept headers plus the session cookies. Binary downloads
// get a wildcard Accept and explicit Accept-Encoding.
//
// Setting Accept-Encoding by hand disables Go's transparent gzip handling
// for that request, so response bodies must go through fetch.DecodeBody.
func BuildHeaders(snapshot Snapshot, userAgent string, binary bool) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept-Language", acceptLanguage)
	// Connection is deliberately absent: it is the transport's header, and
	// setting it breaks requests over negotiated HTTP/2.
	h.Set("Upgrade-Insecure-Requests", "1")
	if binary {
		h.Set("Accept", acceptBinary)
		h.Set("Accept-Encoding", "gzip, deflate")
	} else {
		h.Set("Accept", acceptPage)
	}
	if cookie := snapshot.CookieHeader(); cookie != "" {
		h.Set("Cookie", cookie)
	}
	return h
}

// NewRequest builds an authenticated request for the URL. The binary flavor
// is chosen from the URL's path extension.
func NewRequest(ctx context.Context, method, rawURL string, snapshot Snapshot, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = BuildHeaders(snapshot, userAgent, IsBinaryURL(rawURL))
	return req, nil
}
