package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/marker"
	"github.com/TimurManjosov/splitgate/internal/rollout"
	"github.com/TimurManjosov/splitgate/internal/snapshot"
)

const (
	testVariantURL = "https://loja.example.com"
	testHomeURL    = "https://www.example.com"
	browserUA      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36"
)

type serverOption func(*Options)

func newTestServer(t *testing.T, draw int, opts ...serverOption) *Server {
	t.Helper()
	a, err := allocator.New(allocator.Settings{
		VariantURL: testVariantURL,
		Ratio:      20,
		TTL:        24 * time.Hour,
	}, rollout.Fixed(draw))
	require.NoError(t, err)

	g := gate.New(classifier.New(), a, gate.Options{
		Cookie: marker.DefaultCookieOptions(),
		Logger: zerolog.Nop(),
	})
	o := Options{
		HomeURL:        testHomeURL,
		RateLimitPerIP: 100,
		Settings:       snapshot.SettingsView{VariantURL: testVariantURL, SplitRatio: 20, Policy: "sticky"},
		Logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	srv, err := NewServer(g, o)
	require.NoError(t, err)
	return srv
}

func get(handler http.Handler, target string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", browserUA)
	for _, m := range mutate {
		m(req)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	handler := newTestServer(t, 50).Router()

	rr := get(handler, "/healthz")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got %s", rr.Body.String())
	}
}

func TestNewServer_InvalidHomeURL(t *testing.T) {
	a, err := allocator.New(allocator.Settings{VariantURL: testVariantURL, Ratio: 20, TTL: time.Hour}, nil)
	require.NoError(t, err)
	g := gate.New(classifier.New(), a, gate.Options{Logger: zerolog.Nop()})

	_, err = NewServer(g, Options{HomeURL: "http://[::1"})
	assert.Error(t, err)
}

func TestConfigEndpoint_ETag(t *testing.T) {
	handler := newTestServer(t, 50).Router()

	rr := get(handler, "/v1/gate/config")
	require.Equal(t, http.StatusOK, rr.Code)

	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var snap snapshot.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, 20, snap.Settings.SplitRatio)
	assert.Equal(t, testVariantURL, snap.Settings.VariantURL)
	assert.Equal(t, etag, snap.ETag)

	rr = get(handler, "/v1/gate/config", func(r *http.Request) {
		r.Header.Set("If-None-Match", etag)
	})
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = get(handler, "/v1/gate/config", func(r *http.Request) {
		r.Header.Set("If-None-Match", `W/"stale"`)
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDecideEndpoint(t *testing.T) {
	handler := newTestServer(t, 1).Router()

	decode := func(t *testing.T, rr *httptest.ResponseRecorder) gate.Decision {
		t.Helper()
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp DecideResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.True(t, resp.DryRun)
		return resp.Decision
	}

	t.Run("eligible browser is redirected", func(t *testing.T) {
		q := url.Values{"path": {"/"}, "ua": {browserUA}}
		rr := get(handler, "/v1/gate/decide?"+q.Encode())
		dec := decode(t, rr)
		assert.Equal(t, allocator.ReasonLotteryHit, dec.Outcome.Reason)
		assert.Equal(t, testVariantURL, dec.Outcome.TargetURL)
		require.NotNil(t, dec.SetMarker)
		assert.Equal(t, marker.VariantB, dec.SetMarker.Value)
		assert.Empty(t, rr.Result().Cookies(), "dry runs never write cookies")
	})

	t.Run("crawler is exempt", func(t *testing.T) {
		q := url.Values{"path": {"/"}, "ua": {"Googlebot/2.1 (+http://www.google.com/bot.html)"}}
		dec := decode(t, get(handler, "/v1/gate/decide?"+q.Encode()))
		assert.True(t, dec.Exempt)
		assert.Equal(t, classifier.PredicateBot, dec.Predicate)
		assert.Equal(t, allocator.ReasonExempt, dec.Outcome.Reason)
	})

	t.Run("cart cookie is exempt", func(t *testing.T) {
		q := url.Values{"path": {"/"}, "ua": {browserUA}, "cookie": {"woocommerce_items_in_cart=1"}}
		dec := decode(t, get(handler, "/v1/gate/decide?"+q.Encode()))
		assert.Equal(t, classifier.PredicateCommerceSession, dec.Predicate)
	})

	t.Run("page type and authentication flags", func(t *testing.T) {
		q := url.Values{"path": {"/produto"}, "ua": {browserUA}, "page_type": {"checkout"}}
		dec := decode(t, get(handler, "/v1/gate/decide?"+q.Encode()))
		assert.Equal(t, classifier.PredicateCommercePage, dec.Predicate)

		q = url.Values{"path": {"/"}, "ua": {browserUA}, "authenticated": {"true"}}
		dec = decode(t, get(handler, "/v1/gate/decide?"+q.Encode()))
		assert.Equal(t, classifier.PredicateAuthenticated, dec.Predicate)
	})

	t.Run("sticky marker", func(t *testing.T) {
		q := url.Values{"path": {"/"}, "ua": {browserUA}, "marker": {"lottery"}}
		dec := decode(t, get(handler, "/v1/gate/decide?"+q.Encode()))
		assert.Equal(t, allocator.ReasonStickyControl, dec.Outcome.Reason)
		assert.Nil(t, dec.SetMarker)
	})

	t.Run("malformed marker reads as unset", func(t *testing.T) {
		q := url.Values{"path": {"/"}, "ua": {browserUA}, "marker": {"garbage"}}
		dec := decode(t, get(handler, "/v1/gate/decide?"+q.Encode()))
		assert.True(t, dec.MalformedMarker)
		assert.Equal(t, allocator.ReasonLotteryHit, dec.Outcome.Reason)
	})

	t.Run("invalid boolean", func(t *testing.T) {
		rr := get(handler, "/v1/gate/decide?authenticated=maybe")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, ErrCodeValidation, resp.Code)
		assert.Contains(t, resp.Fields, "authenticated")
		assert.NotEmpty(t, resp.RequestID)
	})

	t.Run("invalid url", func(t *testing.T) {
		rr := get(handler, "/v1/gate/decide?url="+url.QueryEscape("http://[::1"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, ErrCodeInvalidURL, resp.Code)
	})
}

func TestCheckEndpoint(t *testing.T) {
	t.Run("lottery hit goes to the variant", func(t *testing.T) {
		handler := newTestServer(t, 1).Router()
		rr := get(handler, "/ab-test/check?original_path=%2Fproduto%2Fcamiseta")

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, testVariantURL, rr.Header().Get("Location"))
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	})

	t.Run("lottery miss returns to the original page", func(t *testing.T) {
		handler := newTestServer(t, 100).Router()
		rr := get(handler, "/ab-test/check?original_path=%2Fproduto%2Fcamiseta&color=azul")

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, testHomeURL+"/produto/camiseta?color=azul", rr.Header().Get("Location"))

		var found bool
		for _, c := range rr.Result().Cookies() {
			if c.Name == "ab_test_bypass" {
				found = true
				assert.True(t, strings.HasPrefix(c.Value, "lottery."))
			}
		}
		assert.True(t, found, "control marker should be written")
	})

	t.Run("rate limited per IP", func(t *testing.T) {
		handler := newTestServer(t, 100, func(o *Options) { o.RateLimitPerIP = 2 }).Router()
		for i := 0; i < 2; i++ {
			rr := get(handler, "/ab-test/check")
			require.Equal(t, http.StatusFound, rr.Code)
		}
		rr := get(handler, "/ab-test/check")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, ErrCodeRateLimited, resp.Code)

		other := get(handler, "/ab-test/check", func(r *http.Request) { r.RemoteAddr = "198.51.100.7:4000" })
		assert.Equal(t, http.StatusFound, other.Code, "limits are per client IP")
	})
}

func TestNoUpstream_NotFound(t *testing.T) {
	handler := newTestServer(t, 1).Router()
	rr := get(handler, "/produto/camiseta")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ErrCodeNotFound, resp.Code)
}

func TestUpstreamProxy(t *testing.T) {
	var hits int
	var mu sync.Mutex
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte("storefront " + r.URL.Path))
	}))
	defer upstream.Close()
	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	withUpstream := func(o *Options) { o.Upstream = upstreamURL }

	t.Run("lottery miss is proxied with a control marker", func(t *testing.T) {
		handler := newTestServer(t, 100, withUpstream).Router()
		rr := get(handler, "/produto/camiseta")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "storefront /produto/camiseta", rr.Body.String())
		require.NotEmpty(t, rr.Result().Cookies())
		assert.Equal(t, "ab_test_bypass", rr.Result().Cookies()[0].Name)
	})

	t.Run("lottery hit never reaches the storefront", func(t *testing.T) {
		handler := newTestServer(t, 1, withUpstream).Router()
		mu.Lock()
		before := hits
		mu.Unlock()

		rr := get(handler, "/")

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, testVariantURL, rr.Header().Get("Location"))
		mu.Lock()
		assert.Equal(t, before, hits)
		mu.Unlock()
	})

	t.Run("exempt requests are proxied untouched", func(t *testing.T) {
		handler := newTestServer(t, 1, withUpstream).Router()
		rr := get(handler, "/wp-login.php")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Result().Cookies())
	})

	t.Run("api routes are not proxied", func(t *testing.T) {
		handler := newTestServer(t, 1, withUpstream).Router()
		rr := get(handler, "/healthz")
		assert.Equal(t, "ok", rr.Body.String())
	})
}

func TestUpstreamProxy_Unavailable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	upstream.Close()

	handler := newTestServer(t, 100, func(o *Options) { o.Upstream = upstreamURL }).Router()
	rr := get(handler, "/")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ErrCodeBadGateway, resp.Code)
}

func TestConcurrent_DecideRequests(t *testing.T) {
	handler := newTestServer(t, 1).Router()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := get(handler, "/v1/gate/decide?path=%2F")
			if rr.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", rr.Code)
			}
		}()
	}
	wg.Wait()
}
