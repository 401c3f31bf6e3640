// Package auth implements form login against Confluence-style wikis and the
// cookie handling that keeps the session alive afterwards.
//
// # Session model
//
// The wiki authenticates with a POSTed login form and tracks the session in
// cookies (JSESSIONID plus whatever remember-me cookies the deployment adds).
// Login captures those cookies once into an immutable Snapshot; every later
// request carries the snapshot's Cookie header verbatim.
//
// Design decision: The snapshot is taken once and passed explicitly to every
// component that makes requests, instead of sharing a mutable cookie jar.
// Workers run concurrently, and an immutable value threaded through the
// pipeline cannot race, cannot be half-updated, and makes "which session was
// this request sent with" answerable from the call site alone. A session
// that expires mid-run surfaces as ordinary request failures rather than a
// silent re-login changing state under the other workers.
package auth
