package auth

import "strings"

// Cookie is a single name=value pair. Attributes (Path, HttpOnly, ...) are
// discarded at parse time; only the pair is ever replayed.
type Cookie struct {
	Name  string
	Value string
}

// Snapshot is an immutable set of session cookies captured at login time.
// It is passed by value through the crawl pipeline; every HTTP request made
// during a run serializes the same snapshot into its Cookie header.
//
// The zero value is an empty snapshot and produces no Cookie header.
type Snapshot struct {
	cookies []Cookie
}

// DefaultSnapshot returns the cookie seed every session starts from.
// The list-content-tree preference makes the wiki render the sidebar page
// tree, which discovery depends on; without it some deployments serve a
// treeless layout.
func DefaultSnapshot() Snapshot {
	return Snapshot{cookies: []Cookie{
		{Name: "confluence.list.pages.cookie", Value: "list-content-tree"},
	}}
}

// NewSnapshot builds a snapshot from explicit cookie pairs. Later pairs with
// a duplicate name override the value while keeping the original position,
// matching how browsers present cookies.
func NewSnapshot(cookies []Cookie) Snapshot {
	s := Snapshot{}
	for _, c := range cookies {
		s = s.with(c.Name, c.Value)
	}
	return s
}

// ParseCookieHeader parses a raw Cookie header value such as
// "JSESSIONID=abc; ajs_user_id=123" into a snapshot.
//
// Parsing is deliberately forgiving: pairs are split on the first "=", both
// sides are trimmed, and fragments without a "=" or with an empty name are
// skipped. Pre-baked cookie strings are pasted out of browser dev tools and
// arrive with stray spaces and trailing semicolons.
func ParseCookieHeader(raw string) Snapshot {
	s := Snapshot{}
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s = s.with(name, strings.TrimSpace(value))
	}
	return s
}

// SnapshotFromSetCookies builds a snapshot from Set-Cookie header values.
// Each value contributes its leading name=value pair; cookie attributes
// after the first ";" are dropped. Values containing "=" (base64 session
// blobs) survive because only the first "=" splits name from value.
func SnapshotFromSetCookies(values []string) Snapshot {
	s := Snapshot{}
	for _, v := range values {
		name, rest, ok := strings.Cut(v, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		value, _, _ := strings.Cut(rest, ";")
		s = s.with(name, strings.TrimSpace(value))
	}
	return s
}

// with returns a copy of the snapshot with the pair set. The receiver is
// never mutated.
func (s Snapshot) with(name, value string) Snapshot {
	out := Snapshot{cookies: make([]Cookie, len(s.cookies), len(s.cookies)+1)}
	copy(out.cookies, s.cookies)
	for i := range out.cookies {
		if out.cookies[i].Name == name {
			out.cookies[i].Value = value
			return out
		}
	}
	out.cookies = append(out.cookies, Cookie{Name: name, Value: value})
	return out
}

// Merge returns a snapshot holding the receiver's cookies overlaid with
// other's. Names present in both take other's value.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	out := s
	for _, c := range other.cookies {
		out = out.with(c.Name, c.Value)
	}
	return out
}

// CookieHeader serializes the snapshot into a Cookie header value,
// "name=value; name2=value2". Empty snapshots serialize to "".
func (s Snapshot) CookieHeader() string {
	if len(s.cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.cookies))
	for _, c := range s.cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Get returns the value of the named cookie.
func (s Snapshot) Get(name string) (string, bool) {
	for _, c := range s.cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Len returns the number of cookies in the snapshot.
func (s Snapshot) Len() int {
	return len(s.cookies)
}

// IsZero reports whether the snapshot holds no cookies.
func (s Snapshot) IsZero() bool {
	return len(s.cookies) == 0
}

// Cookies returns a copy of the pairs in order.
func (s Snapshot) Cookies() []Cookie {
	out := make([]Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}
