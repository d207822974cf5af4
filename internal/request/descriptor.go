// Package request builds the read-only descriptor the gate classifies.
// Everything the decision core needs about an inbound request is copied into a
// Descriptor once, at the pipeline boundary, so the classifier and allocator
// never reach into ambient request or session state.
package request

import (
	"net/http"
	"path"
	"strings"
)

// PageType is the content-layer classification of the requested page.
type PageType string

const (
	PageUnknown  PageType = "unknown"
	PagePost     PageType = "post"
	PageCart     PageType = "cart"
	PageCheckout PageType = "checkout"
	PageAccount  PageType = "account"
)

// ParsePageType maps a loose name onto a PageType. Anything unrecognised is PageUnknown.
func ParsePageType(s string) PageType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "post", "blog":
		return PagePost
	case "cart":
		return PageCart
	case "checkout":
		return PageCheckout
	case "account", "my-account":
		return PageAccount
	default:
		return PageUnknown
	}
}

// Descriptor is the per-request input to the classifier.
type Descriptor struct {
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	QueryParams map[string]string   `json:"queryParams,omitempty"`
	UserAgent   string              `json:"userAgent,omitempty"`
	CookieNames map[string]struct{} `json:"-"`

	// Host-supplied signals. Unresolved signals stay at their zero value.
	IsAuthenticated    bool     `json:"isAuthenticated"`
	IsAdminContext     bool     `json:"isAdminContext"`
	IsREST             bool     `json:"isREST"`
	IsAsyncAction      bool     `json:"isAsyncAction"`
	IsXMLRPC           bool     `json:"isXMLRPC"`
	PageType           PageType `json:"pageType"`
	HasCommerceSession bool     `json:"hasCommerceSession"`
}

// HasCookie reports whether a cookie with exactly this name was sent.
func (d Descriptor) HasCookie(name string) bool {
	_, ok := d.CookieNames[name]
	return ok
}

// CookieNameList returns the cookie names in no particular order.
func (d Descriptor) CookieNameList() []string {
	names := make([]string, 0, len(d.CookieNames))
	for name := range d.CookieNames {
		names = append(names, name)
	}
	return names
}

// HostState carries the signals only the host application can resolve.
type HostState struct {
	IsAuthenticated    bool
	IsAdminContext     bool
	IsREST             bool
	IsAsyncAction      bool
	IsXMLRPC           bool
	PageType           PageType
	HasCommerceSession bool
}

// Signals resolves host state for a request. Implementations run before the
// host handler, so anything they cannot know yet must be left at its zero value.
type Signals interface {
	Resolve(r *http.Request) HostState
}

// SignalsFunc adapts a plain function to Signals.
type SignalsFunc func(r *http.Request) HostState

// Resolve calls f(r).
func (f SignalsFunc) Resolve(r *http.Request) HostState { return f(r) }

// FromHTTP builds a Descriptor from r. signals may be nil.
func FromHTTP(r *http.Request, signals Signals) Descriptor {
	d := Descriptor{
		Method:      r.Method,
		Path:        NormalizePath(r.URL.Path),
		QueryParams: FlattenQuery(r.URL.Query()),
		UserAgent:   r.UserAgent(),
		CookieNames: make(map[string]struct{}),
		PageType:    PageUnknown,
	}
	for _, c := range r.Cookies() {
		d.CookieNames[c.Name] = struct{}{}
	}
	if signals != nil {
		d.Apply(signals.Resolve(r))
	}
	return d
}

// Apply copies host state onto the descriptor.
func (d *Descriptor) Apply(st HostState) {
	d.IsAuthenticated = st.IsAuthenticated
	d.IsAdminContext = st.IsAdminContext
	d.IsREST = st.IsREST
	d.IsAsyncAction = st.IsAsyncAction
	d.IsXMLRPC = st.IsXMLRPC
	d.HasCommerceSession = st.HasCommerceSession
	d.PageType = st.PageType
	if d.PageType == "" {
		d.PageType = PageUnknown
	}
}

// NormalizePath cleans p and guarantees a leading slash. A trailing slash is
// kept so prefix markers such as "/wc-api/" still match.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	trailing := strings.HasSuffix(p, "/")
	cleaned := path.Clean("/" + p)
	if trailing && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// FlattenQuery keeps the first value of each query parameter.
func FlattenQuery(values map[string][]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		} else {
			out[k] = ""
		}
	}
	return out
}
