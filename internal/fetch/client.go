package fetch

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Options configures the HTTP client pair.
type Options struct {
	// ProxyURL routes traffic through a proxy. Supports http://, https://
	// and socks5:// URLs. Empty means direct (honoring the standard proxy
	// environment variables).
	ProxyURL string

	// BasicUser and BasicPass authenticate against an HTTP Basic gate in
	// front of the wiki. When BasicUser is non-empty, every request made
	// through the client carries the Authorization header.
	BasicUser string
	BasicPass string

	// PageTimeout bounds page and tree requests end to end.
	PageTimeout time.Duration

	// FileTimeout bounds attachment downloads end to end.
	FileTimeout time.Duration

	// MaxBodySize caps how many page body bytes are read. Zero means the
	// limit is left to the caller.
	MaxBodySize int64
}

// Client is the HTTP access layer for the wiki. It owns one client tuned
// for pages and one for file downloads; both share a transport so proxy
// settings and connection pools are common.
type Client struct {
	pages       *http.Client
	files       *http.Client
	maxBodySize int64
	logger      *slog.Logger
}

// Response is a fetched, decoded wiki page.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// FinalURL is the URL after redirects.
	FinalURL string

	// Body is the response body decoded to UTF-8.
	Body string
}

// DownloadInfo describes a completed attachment download.
type DownloadInfo struct {
	// Size is the number of decoded bytes written.
	Size int64

	// ContentType is the server's Content-Type header, advisory only.
	// Byte sniffing later decides the real type.
	ContentType string
}

// New creates a Client. The proxy URL and the Basic gate credentials, when
// set, apply to both clients.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transport, err := newTransport(opts.ProxyURL)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = transport
	if opts.BasicUser != "" {
		rt = &basicAuthTransport{next: transport, user: opts.BasicUser, pass: opts.BasicPass}
	}

	return &Client{
		pages: &http.Client{
			Timeout:   opts.PageTimeout,
			Transport: rt,
		},
		files: &http.Client{
			Timeout:   opts.FileTimeout,
			Transport: rt,
		},
		maxBodySize: opts.MaxBodySize,
		logger:      logger,
	}, nil
}

// basicAuthTransport stamps reverse-proxy Basic credentials onto every
// outgoing request. Deployments that put an auth gate in front of the wiki
// need the header on all traffic: the login POST, page and tree requests,
// and attachment downloads alike.
type basicAuthTransport struct {
	next http.RoundTripper
	user string
	pass string
}

// RoundTrip implements http.RoundTripper. The incoming request is cloned
// before the header is added; transports must not mutate their argument.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.user, t.pass)
	return t.next.RoundTrip(clone)
}

// HTTPClient returns a plain client sharing the page transport and timeout,
// for flows that manage redirects and bodies themselves (form login).
func (c *Client) HTTPClient() *http.Client {
	clone := *c.pages
	return &clone
}

// Page performs the request with the page client and returns the decoded
// body. Non-2xx statuses return a *StatusError after draining the body.
func (c *Client) Page(req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.pages.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", req.URL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}

	var body io.Reader = resp.Body
	if c.maxBodySize > 0 {
		body = io.LimitReader(resp.Body, c.maxBodySize)
	}

	decoded, err := DecodeBody(body, resp.Header.Get("Content-Encoding"), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode page %s: %w", req.URL, err)
	}

	c.logger.Debug("page fetched",
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"bytes", len(decoded),
		"elapsed", time.Since(start),
	)

	return &Response{
		Status:   resp.StatusCode,
		FinalURL: resp.Request.URL.String(),
		Body:     decoded,
	}, nil
}

// Download performs the request with the file client and streams the
// decoded body into dst. maxBytes > 0 enforces a hard ceiling: announced
// oversizes are rejected before the body is read, and lying servers are
// caught mid-stream.
func (c *Client) Download(req *http.Request, dst io.Writer, maxBytes int64) (*DownloadInfo, error) {
	start := time.Now()
	resp, err := c.files.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", req.URL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: announced %d bytes, limit %d", ErrTooLarge, resp.ContentLength, maxBytes)
	}

	body, err := DecodeStream(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decode download %s: %w", req.URL, err)
	}

	var written int64
	if maxBytes > 0 {
		written, err = io.Copy(dst, io.LimitReader(body, maxBytes+1))
		if err == nil && written > maxBytes {
			err = fmt.Errorf("%w: body exceeded %d bytes", ErrTooLarge, maxBytes)
		}
	} else {
		written, err = io.Copy(dst, body)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", req.URL, err)
	}

	c.logger.Debug("attachment downloaded",
		"url", req.URL.String(),
		"bytes", written,
		"elapsed", time.Since(start),
	)

	return &DownloadInfo{
		Size:        written,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Preflight makes one request to verify the target answers at all before a
// run commits to login and traversal. Any HTTP response counts as alive,
// including auth rejections; only transport-level failures and server
// errors report the target as unreachable.
func (c *Client) Preflight(req *http.Request) error {
	resp, err := c.pages.Do(req)
	if err != nil {
		return fmt.Errorf("preflight %s: %w", req.URL, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}
	return nil
}

// newTransport builds the shared transport, wiring in the proxy if one is
// configured.
func newTransport(proxyURL string) (*http.Transport, error) {
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if proxyURL == "" {
		return t, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
	case "socks5":
		var pauth *proxy.Auth
		if u.User != nil {
			pw, _ := u.User.Password()
			pauth = &proxy.Auth{User: u.User.Username(), Password: pw}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, pauth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 proxy: dialer does not support contexts")
		}
		t.Proxy = nil
		t.DialContext = contextDialer.DialContext
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProxy, u.Scheme)
	}
	return t, nil
}
