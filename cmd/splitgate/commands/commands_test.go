package commands

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/cli"
	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/rollout"
	"github.com/TimurManjosov/splitgate/internal/snapshot"
	"github.com/TimurManjosov/splitgate/internal/testutil"
)

// resetFlags restores flag variables; cobra only assigns flags that appear
// on the command line.
func resetFlags() {
	baseURL, format = "", "table"
	classifyFlags = probeFlags{method: "GET"}
	decideFlags = probeFlags{method: "GET"}
	decideMarker = ""
	simTrials, simRatio, simForceDraw = 100000, 20, 0
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestClassify(t *testing.T) {
	out, err := run(t, "classify", "https://shop.example.com/blog/novidades", "--format", "json")
	require.NoError(t, err)

	var c cli.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.True(t, c.Exempt)
	assert.Equal(t, "content_page", c.Predicate)
	assert.Len(t, c.Matches, 11)
}

func TestClassify_EligibleTable(t *testing.T) {
	out, err := run(t, "classify", "/produto/camiseta", "--ua", testutil.BrowserUA)
	require.NoError(t, err)
	assert.Contains(t, out, "/produto/camiseta: eligible")
}

func TestClassify_CookieAndFlags(t *testing.T) {
	out, err := run(t, "classify", "/", "--cookie", "woocommerce_cart_hash=abc", "--format", "json")
	require.NoError(t, err)
	var c cli.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "commerce_session", c.Predicate)

	out, err = run(t, "classify", "/", "--method", "POST", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "non_get", c.Predicate)
}

func TestClassify_RequiresURL(t *testing.T) {
	_, err := run(t, "classify")
	assert.Error(t, err)
}

func TestDecide_LocalStickyMarker(t *testing.T) {
	out, err := run(t, "decide", "/", "--ua", testutil.BrowserUA, "--marker", "bypass", "--format", "json")
	require.NoError(t, err)

	var dec gate.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &dec))
	assert.Equal(t, allocator.ReasonStickyBypass, dec.Outcome.Reason)
	assert.Nil(t, dec.SetMarker)
}

func TestDecide_Remote(t *testing.T) {
	server, _ := testutil.NewTestServer(t, 1)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	out, err := run(t, "decide", "/", "--base-url", ts.URL, "--ua", testutil.BrowserUA, "--format", "json")
	require.NoError(t, err)

	var dec gate.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &dec))
	assert.Equal(t, allocator.ReasonLotteryHit, dec.Outcome.Reason)
	assert.Equal(t, testutil.VariantURL, dec.Outcome.TargetURL)
}

func TestSimulate_ForcedDraw(t *testing.T) {
	out, err := run(t, "simulate", "--trials", "500", "--ratio", "20", "--force-draw", "20", "--format", "json")
	require.NoError(t, err)

	var res allocator.SimulationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 500, res.Redirects)
	assert.Zero(t, res.StickyViolations)
}

func TestSimulate_Validation(t *testing.T) {
	_, err := run(t, "simulate", "--trials", "0")
	assert.Error(t, err)

	_, err = run(t, "simulate", "--ratio", "101")
	assert.ErrorIs(t, err, rollout.ErrInvalidRatio)
}

func TestConfig_Local(t *testing.T) {
	out, err := run(t, "config", "--format", "json")
	require.NoError(t, err)

	var view snapshot.SettingsView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 20, view.SplitRatio)
	assert.Equal(t, "ab_test_bypass", view.MarkerName)
}

func TestConfig_Remote(t *testing.T) {
	server, _ := testutil.NewTestServer(t, 50)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	_, err := run(t, "config", "--base-url", ts.URL)
	require.NoError(t, err)
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := run(t, "config", "--format", "xml")
	assert.Error(t, err)
}
