package gate

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/request"
)

// Query parameters consumed by the check endpoint itself.
const (
	ParamOriginalPath = "original_path"
	paramAction       = "action"
	paramCheck        = "ab_test_check"
)

// CheckHandler serves the storefront's client-side check: the page script
// calls it with original_path set to the page the visitor asked for, and the
// handler answers with a 302 either back to that page on the home origin or
// to the variant. Classification runs against the original page, not the
// check endpoint.
func (g *Gate) CheckHandler(homeURL string) (http.HandlerFunc, error) {
	home, err := url.Parse(homeURL)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter, r *http.Request) {
		now := g.opts.Clock()
		target := TargetURL(home, r.URL.Query())

		// Signals and the descriptor both see the original page, so an
		// admin-ajax.php check endpoint is not itself classified as AJAX.
		build := func(r *http.Request, signals request.Signals) request.Descriptor {
			original := r.Clone(r.Context())
			original.URL = target
			return request.FromHTTP(original, signals)
		}

		dec, ok := g.evaluateRequest(r, build, now)
		if !ok {
			writeRedirect(w, r, target.String(), allocator.NoStoreHeaders())
			return
		}
		g.record(dec)
		g.setMarker(w, r, dec, now)

		if dec.Outcome.IsRedirect() {
			writeRedirect(w, r, dec.Outcome.TargetURL, dec.Outcome.Headers)
			return
		}
		writeRedirect(w, r, target.String(), allocator.NoStoreHeaders())
	}, nil
}

// TargetURL rebuilds the page the visitor originally requested on the home
// origin: the path of original_path plus every query parameter that is not
// part of the check protocol. An empty original_path means the home page.
func TargetURL(home *url.URL, query url.Values) *url.URL {
	target := *home
	target.RawQuery = ""
	target.Fragment = ""
	base := strings.TrimSuffix(home.Path, "/")

	original := query.Get(ParamOriginalPath)
	if original == "" {
		target.Path = base + "/"
		return &target
	}

	p := "/"
	if parsed, err := url.Parse(original); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	target.Path = base + "/" + strings.TrimPrefix(p, "/")

	rest := url.Values{}
	for k, vs := range query {
		switch k {
		case ParamOriginalPath, paramAction, paramCheck:
			continue
		}
		rest[k] = vs
	}
	target.RawQuery = rest.Encode()
	return &target
}
