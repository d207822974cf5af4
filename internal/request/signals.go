package request

import (
	"net/http"
	"strings"
)

// DefaultLoginCookiePrefixes are cookie name prefixes set by the storefront
// once a user has signed in.
var DefaultLoginCookiePrefixes = []string{"wordpress_logged_in_"}

// CookieSignals is the resolver used when the gate runs in front of the host
// rather than inside it. It can only see the raw request, so it infers
// authentication from login cookies and flags REST and AJAX entry points by
// path. Page type and cart contents are not observable here and stay unresolved.
type CookieSignals struct {
	LoginCookiePrefixes []string
}

// NewCookieSignals returns a CookieSignals with the default login prefixes.
func NewCookieSignals() CookieSignals {
	return CookieSignals{LoginCookiePrefixes: DefaultLoginCookiePrefixes}
}

// Resolve implements Signals.
func (s CookieSignals) Resolve(r *http.Request) HostState {
	st := HostState{PageType: PageUnknown}
	for _, c := range r.Cookies() {
		for _, prefix := range s.LoginCookiePrefixes {
			if strings.HasPrefix(c.Name, prefix) {
				st.IsAuthenticated = true
			}
		}
	}
	q := r.URL.Query()
	if q.Has("rest_route") {
		st.IsREST = true
	}
	if strings.HasSuffix(r.URL.Path, "/admin-ajax.php") || q.Has("wc-ajax") {
		st.IsAsyncAction = true
	}
	if strings.HasSuffix(r.URL.Path, "/xmlrpc.php") {
		st.IsXMLRPC = true
	}
	return st
}
