package auth

import "errors"

// Authentication errors.
//
// Design decision: Package-level sentinel errors so callers can distinguish
// "the site rejected the credentials" from "the network failed" with
// errors.Is() instead of string matching.
var (
	// ErrLoginFailed is returned when the login endpoint answers with a
	// status other than 200 or 302. No follow-up request is made in that
	// case.
	ErrLoginFailed = errors.New("login failed: unexpected status from login endpoint")

	// ErrLoginVerification is returned when the post-login verification
	// request for the destination page does not succeed.
	ErrLoginVerification = errors.New("login verification failed: destination page not reachable with session")

	// ErrNoCookies is returned when a cookie source contains no usable
	// name=value pairs.
	ErrNoCookies = errors.New("no cookies: source contained no name=value pairs")
)
