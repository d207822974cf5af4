package gate

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/request"
	"github.com/TimurManjosov/splitgate/internal/rollout"
)

func TestProbe_Descriptor(t *testing.T) {
	p := Probe{
		URL:       "https://www.example.com/Shop/Item?color=red",
		UserAgent: browserUA,
		Cookies:   []string{"wordpress_logged_in_abc=1", "plain"},
		PageType:  "cart",
	}
	d, err := p.Descriptor(context.Background(), request.NewCookieSignals())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, d.Method)
	assert.Equal(t, "/Shop/Item", d.Path)
	assert.Equal(t, "red", d.QueryParams["color"])
	assert.Equal(t, browserUA, d.UserAgent)
	assert.True(t, d.HasCookie("plain"))
	assert.True(t, d.IsAuthenticated)
	assert.Equal(t, request.PageCart, d.PageType)
}

func TestProbe_DefaultsToRootGet(t *testing.T) {
	req, err := Probe{}.Request(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/", req.URL.Path)
}

func TestProbe_InvalidURL(t *testing.T) {
	_, err := Probe{URL: "http://[::1"}.Request(context.Background())
	assert.Error(t, err)
}

func TestDryRun(t *testing.T) {
	g := newGate(t, rollout.Fixed(1))

	t.Run("eligible visitor is redirected", func(t *testing.T) {
		dec, err := g.DryRun(context.Background(), Probe{URL: "/", UserAgent: browserUA})
		require.NoError(t, err)
		assert.Equal(t, allocator.ReasonLotteryHit, dec.Outcome.Reason)
		assert.Equal(t, variantURL, dec.Outcome.TargetURL)
	})

	t.Run("marker read from cookies", func(t *testing.T) {
		dec, err := g.DryRun(context.Background(), Probe{
			URL:       "/",
			UserAgent: browserUA,
			Cookies:   []string{cookieName + "=bypass"},
		})
		require.NoError(t, err)
		assert.Equal(t, allocator.ReasonStickyBypass, dec.Outcome.Reason)
	})

	t.Run("explicit marker wins", func(t *testing.T) {
		dec, err := g.DryRun(context.Background(), Probe{
			URL:       "/",
			UserAgent: browserUA,
			Cookies:   []string{cookieName + "=bypass"},
			Marker:    "lottery",
		})
		require.NoError(t, err)
		assert.Equal(t, allocator.ReasonStickyControl, dec.Outcome.Reason)
	})

	t.Run("exempt probe reports its predicate", func(t *testing.T) {
		dec, err := g.DryRun(context.Background(), Probe{URL: "/", Method: "post", UserAgent: browserUA})
		require.NoError(t, err)
		assert.True(t, dec.Exempt)
		assert.Equal(t, classifier.PredicateNonGet, dec.Predicate)
	})
}
