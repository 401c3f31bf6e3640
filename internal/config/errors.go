package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoStartURL is returned when no start page URL is specified.
	// The mirror needs a page to anchor tree discovery.
	ErrNoStartURL = errors.New("no start URL specified: provide a wiki page URL")

	// ErrInvalidStartURL is returned when the start URL cannot be parsed
	// or is missing its scheme or host.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http(s) URL")

	// ErrNoCredentials is returned when neither form credentials nor a
	// session cookie are configured. Every wiki request needs a session.
	ErrNoCredentials = errors.New("no credentials: provide username and password, or a session cookie")

	// ErrInvalidConcurrency is returned when the worker count is not positive.
	// Zero workers would mean no mirroring at all.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// A negative delay is invalid; use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxRetries is returned when the retry budget is negative.
	// Use 0 to disable retries entirely.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxAttachmentSize is returned when the attachment size
	// ceiling is negative. Use 0 to drop all attachments.
	ErrInvalidMaxAttachmentSize = errors.New("invalid max attachment size: must be non-negative")

	// ErrMissingAPIKey is returned when an LLM-backed optimizer is selected
	// without an API key to authenticate with.
	ErrMissingAPIKey = errors.New("missing API key: the selected optimizer requires one")

	// ErrInvalidTemperature is returned when the sampling temperature is
	// outside the [0, 2] range accepted by chat-completion endpoints.
	ErrInvalidTemperature = errors.New("invalid temperature: must be between 0 and 2")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
