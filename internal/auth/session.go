package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// loginFormFields builds the form body the wiki's login endpoint expects.
// The field names and the literal submit value are fixed by the server-side
// form; os_cookie=true asks for a remember-me cookie alongside JSESSIONID,
// and os_destination makes the server validate that the session can reach
// the page we actually care about.
func loginFormFields(username, password, destination string) url.Values {
	return url.Values{
		"os_username":    {username},
		"os_password":    {password},
		"os_cookie":      {"true"},
		"os_destination": {destination},
		"login":          {"登录"},
	}
}

// SessionOptions configures a login session.
type SessionOptions struct {
	// BaseURL is the wiki origin, e.g. "https://wiki.example.com".
	BaseURL string

	// LoginPath is the form-login endpoint relative to BaseURL.
	LoginPath string

	// Username and Password are the form credentials.
	Username string
	Password string

	// UserAgent is sent with the login and verification requests.
	UserAgent string
}

// Session performs form login and produces the cookie snapshot the rest of
// the run authenticates with.
type Session struct {
	opts SessionOptions

	// postClient never follows redirects: the login endpoint signals
	// success with a 302, and following it would hide the status we need
	// to inspect.
	postClient *http.Client

	// followClient follows redirects normally; used for the verification
	// request after login.
	followClient *http.Client

	logger *slog.Logger
}

// NewSession creates a Session on top of the given HTTP client. The client's
// transport (proxy, TLS, timeouts) is reused; redirect behavior is adjusted
// per request kind.
func NewSession(client *http.Client, opts SessionOptions, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	post := *client
	post.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	follow := *client
	follow.CheckRedirect = nil

	return &Session{
		opts:         opts,
		postClient:   &post,
		followClient: &follow,
		logger:       logger,
	}
}

// NewLoginRequest builds the login POST for the given destination page.
func (s *Session) NewLoginRequest(ctx context.Context, destination string) (*http.Request, error) {
	loginURL := strings.TrimRight(s.opts.BaseURL, "/") + s.opts.LoginPath
	form := loginFormFields(s.opts.Username, s.opts.Password, destination)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", acceptPage)
	req.Header.Set("Accept-Language", acceptLanguage)
	return req, nil
}

// Login POSTs the login form and returns the cookie snapshot for the run.
// destination is the page the run will start from; the server is asked to
// validate it, and after a successful login exactly one verification request
// is made for it with the fresh snapshot.
//
// A login response outside {200, 302} fails immediately and triggers no
// follow-up request.
func (s *Session) Login(ctx context.Context, destination string) (Snapshot, error) {
	req, err := s.NewLoginRequest(ctx, destination)
	if err != nil {
		return Snapshot{}, err
	}

	resp, err := s.postClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("login request: %w", err)
	}
	drainAndClose(resp.Body)

	snapshot, err := s.HandleLoginResponse(resp)
	if err != nil {
		return Snapshot{}, err
	}

	if err := s.verify(ctx, destination, snapshot); err != nil {
		return Snapshot{}, err
	}

	s.logger.Info("login succeeded",
		"user", s.opts.Username,
		"cookies", snapshot.Len(),
	)
	return snapshot, nil
}

// HandleLoginResponse inspects the login response and captures the session
// cookies, merged over the default seed. Both 200 and 302 count as success:
// deployments differ on whether a validated os_destination redirects
// immediately or renders a page.
func (s *Session) HandleLoginResponse(resp *http.Response) (Snapshot, error) {
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return Snapshot{}, fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	granted := SnapshotFromSetCookies(resp.Header.Values("Set-Cookie"))
	if granted.IsZero() {
		// Some reverse proxies strip Set-Cookie from the 200 path. The
		// run can still work if the deployment authenticates another way,
		// so warn instead of failing here; verification decides.
		s.logger.Warn("login response carried no cookies", "status", resp.StatusCode)
	}
	return DefaultSnapshot().Merge(granted), nil
}

// verify makes the single post-login request for the destination page,
// proving the snapshot grants access before workers start from it.
func (s *Session) verify(ctx context.Context, destination string, snapshot Snapshot) error {
	req, err := NewRequest(ctx, http.MethodGet, destination, snapshot, s.opts.UserAgent)
	if err != nil {
		return fmt.Errorf("build verification request: %w", err)
	}

	resp, err := s.followClient.Do(req)
	if err != nil {
		return fmt.Errorf("verification request: %w", err)
	}
	drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrLoginVerification, resp.StatusCode)
	}
	return nil
}

// drainAndClose discards the rest of a response body and closes it so the
// underlying connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
