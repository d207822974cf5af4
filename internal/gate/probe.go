package gate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/TimurManjosov/splitgate/internal/marker"
	"github.com/TimurManjosov/splitgate/internal/request"
)

// Probe describes a synthetic visit used for dry runs.
type Probe struct {
	URL       string
	Method    string
	UserAgent string
	// Cookies are "name" or "name=value" pairs.
	Cookies       []string
	PageType      string
	Authenticated bool
	// Marker is the raw assignment cookie value. When empty the marker is
	// taken from Cookies, if present there.
	Marker string
}

// Request builds the http.Request the probe stands for.
func (p Probe) Request(ctx context.Context) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := p.URL
	if target == "" {
		target = "/"
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid probe URL %q: %w", p.URL, err)
	}
	if req.Host == "" {
		req.Host = req.URL.Host
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	for _, c := range p.Cookies {
		name, value, _ := strings.Cut(c, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req, nil
}

// Descriptor builds the request descriptor for the probe. Explicit page type
// and authentication flags override whatever signals resolved.
func (p Probe) Descriptor(ctx context.Context, signals request.Signals) (request.Descriptor, error) {
	req, err := p.Request(ctx)
	if err != nil {
		return request.Descriptor{}, err
	}
	d := request.FromHTTP(req, signals)
	if p.PageType != "" {
		d.PageType = request.ParsePageType(p.PageType)
	}
	if p.Authenticated {
		d.IsAuthenticated = true
	}
	return d, nil
}

// DryRun evaluates the probe without writing cookies or recording metrics.
func (g *Gate) DryRun(ctx context.Context, p Probe) (Decision, error) {
	d, err := p.Descriptor(ctx, g.opts.Signals)
	if err != nil {
		return Decision{}, err
	}
	raw := p.Marker
	if raw == "" {
		for _, c := range p.Cookies {
			if name, value, ok := strings.Cut(c, "="); ok && strings.TrimSpace(name) == g.opts.Cookie.Name {
				raw = value
				break
			}
		}
	}
	return g.Evaluate(d, raw, g.opts.Clock()), nil
}

// CookieOptions returns the marker cookie settings the gate writes with.
func (g *Gate) CookieOptions() marker.CookieOptions {
	return g.opts.Cookie
}
