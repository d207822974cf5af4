package marker

import (
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// CookieOptions controls how the marker travels as a cookie.
type CookieOptions struct {
	Name     string
	TTL      time.Duration
	Path     string
	Domain   string // empty: derive the apex domain from the request host
	HTTPOnly bool
	Secure   bool
}

// DefaultCookieOptions is the storefront cookie: one day, whole site.
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		Name:     "ab_test_bypass",
		TTL:      24 * time.Hour,
		Path:     "/",
		HTTPOnly: true,
	}
}

// Read returns the marker carried by r. A missing cookie is an Unset marker
// with ok=true; an unreadable one is Unset with ok=false.
func Read(r *http.Request, name string) (Marker, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return Marker{}, true
	}
	return Parse(c.Value)
}

// Cookie builds the Set-Cookie for m. host is the request host and is only
// consulted when opts.Domain is empty.
func Cookie(m Marker, opts CookieOptions, host string, now time.Time) *http.Cookie {
	path := opts.Path
	if path == "" {
		path = "/"
	}
	domain := opts.Domain
	if domain == "" {
		domain = ApexDomain(host)
	}

	c := &http.Cookie{
		Name:     opts.Name,
		Value:    m.Encode(),
		Path:     path,
		Domain:   domain,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	expires := m.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(opts.TTL)
	}
	c.Expires = expires.UTC()
	c.MaxAge = int(expires.Sub(now).Seconds())
	if c.MaxAge <= 0 {
		c.MaxAge = -1
	}
	return c
}

// ApexDomain returns the registrable domain (eTLD+1) of host, without port.
// IP addresses, single-label hosts and anything publicsuffix rejects yield ""
// which leaves the cookie host-only.
func ApexDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil || !strings.Contains(host, ".") {
		return ""
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return apex
}
