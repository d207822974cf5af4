package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/api"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/marker"
	"github.com/TimurManjosov/splitgate/internal/rollout"
)

const (
	VariantURL = "https://variant.test"
	HomeURL    = "https://shop.test"
	BrowserUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36"
)

// NewTestServer creates a gate API server with a 20% split whose lottery
// returns draws in order (repeating the last one).
func NewTestServer(t *testing.T, draws ...int) (*api.Server, *rollout.Sequence) {
	t.Helper()
	seq := rollout.NewSequence(draws...)
	a, err := allocator.New(allocator.Settings{
		VariantURL: VariantURL,
		Ratio:      20,
		TTL:        24 * time.Hour,
	}, seq)
	if err != nil {
		t.Fatalf("allocator: %v", err)
	}
	g := gate.New(classifier.New(), a, gate.Options{
		Cookie: marker.DefaultCookieOptions(),
		Logger: zerolog.Nop(),
	})
	server, err := api.NewServer(g, api.Options{
		HomeURL:        HomeURL,
		RateLimitPerIP: 1000,
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return server, seq
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
	Cookies []*http.Cookie
}

// Do executes the HTTP request and returns the response recorder.
// Requests carry a desktop browser User-Agent unless Headers sets one.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	req.Header.Set("User-Agent", BrowserUA)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.Cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ResponseCookie returns the cookie named name set by the response, or nil.
func ResponseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
