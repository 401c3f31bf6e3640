package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen based on typical self-hosted Confluence-style wiki
// behavior: slow server-side rendering, session-cookie authentication, and
// rate limiting that punishes aggressive clients.
const (
	// DefaultConcurrency is the number of pages mirrored in parallel.
	// Two workers keep the crawl moving without tripping the rate limits
	// most corporate wiki installations enforce per session.
	DefaultConcurrency = 2

	// DefaultCrawlDelay is the politeness delay between page requests.
	// Four seconds is deliberately conservative: wiki pages are rendered
	// server-side and a burst of requests degrades the site for everyone
	// holding a browser session on it.
	DefaultCrawlDelay = 4 * time.Second

	// DefaultMaxRetries is how many times a transient page failure is
	// retried before the page is recorded as failed. Renders that hit a
	// cold cache routinely need two or three attempts.
	DefaultMaxRetries = 5

	// DefaultRenderWaitLimit bounds how many times a "page not ready"
	// placeholder response is re-requested before giving up. The server
	// returns the placeholder while its render queue is busy, so a few
	// identical re-requests usually suffice.
	DefaultRenderWaitLimit = 5

	// DefaultPageTimeout is the HTTP timeout for page and tree requests.
	// Server-rendered wiki pages normally answer within a few seconds;
	// thirty seconds absorbs slow renders without hanging the worker.
	DefaultPageTimeout = 30 * time.Second

	// DefaultFileTimeout is the HTTP timeout for attachment downloads.
	// Binary attachments can run to tens of megabytes over slow intranet
	// links, so downloads get a much longer budget than pages.
	DefaultFileTimeout = 180 * time.Second

	// DefaultMaxAttachmentMB is the per-attachment download ceiling in
	// megabytes. Larger files are dropped before download to keep a single
	// video or archive from stalling the whole run.
	DefaultMaxAttachmentMB = 50

	// DefaultOCRLanguage is the tesseract language pack used for image
	// attachments. Simplified Chinese matches the corpora these wikis
	// typically hold; override per deployment as needed.
	DefaultOCRLanguage = "chi_sim"

	// DefaultOptimizer is the content optimizer used when none is
	// configured. Plain HTML-to-Markdown conversion needs no external
	// service and never blocks a run on a third-party API.
	DefaultOptimizer = "html2md"

	// DefaultChatTemperature is the sampling temperature for LLM-backed
	// optimizers. Low temperature keeps the rewriting faithful to the
	// source instead of creative.
	DefaultChatTemperature = 0.2

	// DefaultOptimizeTimeout is the HTTP timeout for one optimizer call.
	DefaultOptimizeTimeout = 120 * time.Second

	// DefaultNotifyTimeout is the HTTP timeout for the completion
	// callback. The callback is fire-and-forget, so it gets a short
	// budget that cannot hold up the end of a run.
	DefaultNotifyTimeout = 10 * time.Second

	// DefaultUserAgent mimics a desktop browser. The wiki login form and
	// the page tree endpoint are meant for browsers, and some deployments
	// reject clients that do not look like one.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultLoginPath is the form-login endpoint of Confluence-style wikis.
	DefaultLoginPath = "/dologin.action"

	// DefaultTreePath is the page-tree AJAX endpoint used for discovery.
	DefaultTreePath = "/plugins/pagetree/naturalchildren.action"

	// DefaultMaxBodySize limits the page response body size to read.
	// 10MB covers even pathological wiki pages while preventing memory
	// exhaustion from unexpected responses.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// AppName is the application name used for XDG directory paths.
	AppName = "wikimirror"
)

// DefaultExcludeExtensions are the filename extensions dropped before
// download. Wiki pages are full of decorative images (logos, icons,
// emoticons) whose OCR output is noise; sites that attach screenshots
// worth reading override this list to empty.
var DefaultExcludeExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg",
}

// DefaultExcludeMIMETypes are the media types dropped by filtering, both
// from URL hints and from sniffed bytes.
var DefaultExcludeMIMETypes = []string{
	"image/jpeg", "image/png", "image/gif", "image/svg+xml",
}

// SiteConfig describes the wiki site and how to authenticate against it.
type SiteConfig struct {
	// BaseURL is the wiki origin, e.g. "https://wiki.example.com".
	// When empty it is derived from the start URL by Normalize.
	BaseURL string

	// Username and Password are the form-login credentials.
	// They are POSTed to LoginPath; alternatively a pre-baked Cookie can
	// be supplied and login is skipped entirely.
	Username string
	Password string

	// BasicUser and BasicPass authenticate against an HTTP Basic gate in
	// front of the wiki (reverse-proxy auth). Independent of the form
	// credentials; when set, every request carries the Authorization
	// header, login and attachment downloads included.
	BasicUser string
	BasicPass string

	// Cookie is a raw Cookie header value ("name=value; name2=value2").
	// When set, form login is skipped and this cookie is used as-is.
	Cookie string

	// LoginPath is the form-login endpoint, relative to BaseURL.
	LoginPath string

	// ProxyURL routes all wiki traffic through a proxy. Supports
	// http://, https:// and socks5:// URLs. Empty means direct.
	ProxyURL string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string
}

// CrawlConfig controls tree traversal and page fetching.
type CrawlConfig struct {
	// StartURL is the wiki page the mirror starts from. The page tree is
	// discovered from this page's position in the hierarchy.
	StartURL string

	// Concurrency is the number of pages mirrored in parallel.
	Concurrency int

	// Delay is the politeness delay between page requests.
	Delay time.Duration

	// MaxRetries is the retry budget per page for transient failures.
	MaxRetries int

	// RenderWaitLimit bounds re-requests of "page not ready" placeholders.
	RenderWaitLimit int

	// PageTimeout is the HTTP timeout for page and tree requests.
	PageTimeout time.Duration

	// FileTimeout is the HTTP timeout for attachment downloads.
	FileTimeout time.Duration

	// MaxDepth limits tree depth. Zero means unlimited.
	MaxDepth int

	// MaxBodySize is the maximum page response body size in bytes to read.
	// Set to 0 to use the default (10MB).
	MaxBodySize int64

	// Resume skips pages whose content fingerprint matches the ledger
	// entry from a previous run. Requires the ledger to be enabled.
	Resume bool
}

// ExtractConfig controls attachment download and text extraction.
type ExtractConfig struct {
	// MaxAttachmentMB is the per-attachment size ceiling in megabytes.
	// Attachments advertised or measured above this are dropped.
	MaxAttachmentMB int64

	// ExcludeExtensions lists filename extensions dropped before download.
	// Compared lowercase, dot included.
	ExcludeExtensions []string

	// ExcludeMIMETypes lists media type prefixes dropped when matched,
	// both from URL hints before download and from sniffed bytes after.
	ExcludeMIMETypes []string

	// OCRLanguage is the tesseract language pack for image attachments.
	OCRLanguage string

	// ScratchDir is where downloads land before extraction. Empty means
	// a run-scoped directory under the system temp dir. The scratch
	// directory is removed when the run ends, success or not.
	ScratchDir string

	// DisableOCR skips OCR on image attachments entirely. Useful where
	// tesseract is not installed.
	DisableOCR bool

	// SkipAttachments disables attachment processing wholesale: no
	// downloads, no attachments/ directory, document links only.
	SkipAttachments bool
}

// OptimizeConfig controls the content optimizer.
type OptimizeConfig struct {
	// Kind selects the optimizer: "html2md", "xunfei", "baichuan" or
	// "compatible". Unknown values fall back to html2md with a warning
	// rather than failing the run.
	Kind string

	// APIURL overrides the optimizer's endpoint URL. Each LLM-backed
	// optimizer has a sensible default.
	APIURL string

	// APIKey authenticates against the LLM endpoint. Required for every
	// kind except html2md.
	APIKey string

	// Model overrides the model name sent to the LLM endpoint.
	Model string

	// Temperature is the sampling temperature for LLM-backed optimizers.
	Temperature float64

	// Stream requests incremental delta responses instead of a single
	// completion. Streamed deltas are assembled into the final document.
	Stream bool

	// SystemPrompt overrides the built-in restructuring instruction sent
	// as the system turn of every LLM call.
	SystemPrompt string

	// Extra holds additional request parameters merged verbatim into the
	// JSON body, for endpoints that take vendor-specific knobs.
	Extra map[string]any

	// Timeout is the HTTP timeout for one optimizer call.
	Timeout time.Duration
}

// OutputConfig controls where and how the mirror is written.
type OutputConfig struct {
	// Dir is the mirror root directory. Empty means "./markdown".
	Dir string

	// SubDir optionally flattens the whole export into a single named
	// directory instead of the tree-derived hierarchy.
	SubDir string

	// JSONReport emits the final run report as JSON instead of the
	// human-readable summary. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport emits the final run report as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string
}

// StateConfig controls the run ledger database.
type StateConfig struct {
	// DBPath is the SQLite ledger file recording page fingerprints per
	// run. Defaults to state.db under the XDG data directory.
	DBPath string

	// Disable turns the ledger off: nothing is recorded and a resume run
	// has nothing to compare against.
	Disable bool
}

// NotifyConfig controls the completion callback.
type NotifyConfig struct {
	// CallbackURL receives a POST with the run summary when the mirror
	// finishes. Empty disables notification.
	CallbackURL string

	// Timeout is the HTTP timeout for the callback request.
	Timeout time.Duration
}

// Config holds all configuration options for wikimirror.
// This struct is designed to be populated from CLI flags and the optional
// YAML config file, then passed through the application via dependency
// injection rather than global state.
//
// Design decision: The options are grouped into sub-structs (site, crawl,
// extract, optimize, output, notify) because they configure independent
// stages of the mirror pipeline and are consumed by different packages.
// A flat struct at this size would bury which knob belongs to which stage.
type Config struct {
	// Site describes the wiki and its authentication.
	Site SiteConfig

	// Crawl controls traversal and fetching.
	Crawl CrawlConfig

	// Extract controls attachment handling.
	Extract ExtractConfig

	// Optimize controls content optimization.
	Optimize OptimizeConfig

	// Output controls export and reporting.
	Output OutputConfig

	// State controls the run ledger.
	State StateConfig

	// Notify controls the completion callback.
	Notify NotifyConfig

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .wikimirror in the current directory
	// and then in the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts, delays).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Site: SiteConfig{
			LoginPath: DefaultLoginPath,
			UserAgent: DefaultUserAgent,
		},
		Crawl: CrawlConfig{
			Concurrency:     DefaultConcurrency,
			Delay:           DefaultCrawlDelay,
			MaxRetries:      DefaultMaxRetries,
			RenderWaitLimit: DefaultRenderWaitLimit,
			PageTimeout:     DefaultPageTimeout,
			FileTimeout:     DefaultFileTimeout,
			MaxBodySize:     DefaultMaxBodySize,
		},
		Extract: ExtractConfig{
			MaxAttachmentMB:   DefaultMaxAttachmentMB,
			ExcludeExtensions: append([]string(nil), DefaultExcludeExtensions...),
			ExcludeMIMETypes:  append([]string(nil), DefaultExcludeMIMETypes...),
			OCRLanguage:       DefaultOCRLanguage,
		},
		Optimize: OptimizeConfig{
			Kind:        DefaultOptimizer,
			Temperature: DefaultChatTemperature,
			Timeout:     DefaultOptimizeTimeout,
		},
		State: StateConfig{
			DBPath: filepath.Join(XDGDataDir(), "state.db"),
		},
		Notify: NotifyConfig{
			Timeout: DefaultNotifyTimeout,
		},
	}
}

// XDGDataDir returns the XDG data directory for wikimirror.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/wikimirror
// On macOS: ~/Library/Application Support/wikimirror
// On Windows: %LOCALAPPDATA%\wikimirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wikimirror.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/wikimirror
// On macOS: ~/Library/Application Support/wikimirror
// On Windows: %APPDATA%\wikimirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for wikimirror.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.cache/wikimirror
// On macOS: ~/Library/Caches/wikimirror
// On Windows: %LOCALAPPDATA%\wikimirror\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Normalize fills fields that are derived from others: the site base URL
// from the start URL, and the tree endpoint default. It is called once
// after flags and config file are merged, before Validate.
func (c *Config) Normalize() error {
	if c.Site.BaseURL == "" && c.Crawl.StartURL != "" {
		u, err := url.Parse(c.Crawl.StartURL)
		if err != nil {
			return ErrInvalidStartURL
		}
		if u.Scheme == "" || u.Host == "" {
			return ErrInvalidStartURL
		}
		c.Site.BaseURL = u.Scheme + "://" + u.Host
	}
	c.Site.BaseURL = strings.TrimRight(c.Site.BaseURL, "/")
	if c.Site.LoginPath == "" {
		c.Site.LoginPath = DefaultLoginPath
	}
	if c.Site.UserAgent == "" {
		c.Site.UserAgent = DefaultUserAgent
	}
	if c.Optimize.Kind == "" {
		c.Optimize.Kind = DefaultOptimizer
	}
	return nil
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any mirroring begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have a page to start from
	if c.Crawl.StartURL == "" {
		return ErrNoStartURL
	}

	// We must be able to authenticate: either form credentials or a cookie
	if c.Site.Cookie == "" && (c.Site.Username == "" || c.Site.Password == "") {
		return ErrNoCredentials
	}

	// Concurrency must be positive; zero would mean no workers
	if c.Crawl.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// Delay must be non-negative
	if c.Crawl.Delay < 0 {
		return ErrInvalidCrawlDelay
	}

	// Retry budget must be non-negative
	if c.Crawl.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	// Timeouts must be positive; zero timeouts would cause immediate failures
	if c.Crawl.PageTimeout <= 0 || c.Crawl.FileTimeout <= 0 {
		return ErrInvalidTimeout
	}

	// Attachment ceiling must be non-negative; zero means no ceiling
	if c.Extract.MaxAttachmentMB < 0 {
		return ErrInvalidMaxAttachmentSize
	}

	// Chat-backed optimizers need an API key to authenticate
	if c.Optimize.Kind != "" && c.Optimize.Kind != "html2md" && c.Optimize.APIKey == "" {
		if isKnownChatOptimizer(c.Optimize.Kind) {
			return ErrMissingAPIKey
		}
	}

	// Temperature outside the usual sampling range is a typo, not a choice
	if c.Optimize.Temperature < 0 || c.Optimize.Temperature > 2 {
		return ErrInvalidTemperature
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.Output.JSONReport && c.Output.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// isKnownChatOptimizer reports whether kind names an LLM-backed optimizer.
// Unknown kinds are deliberately not rejected here: the optimizer factory
// falls back to html2md with a warning so that a typo degrades the output
// rather than killing the run.
func isKnownChatOptimizer(kind string) bool {
	switch kind {
	case "xunfei", "baichuan", "compatible":
		return true
	}
	return false
}
