// Package gate wires the classifier and the allocator into the request
// pipeline.
//
// The gate runs before the host handler. At that point the host may not yet
// know the page type or cart contents; whatever its Signals cannot resolve
// reads as Unknown/false, and the path-based hints in the classifier cover
// the commerce and content pages instead.
package gate

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/marker"
	"github.com/TimurManjosov/splitgate/internal/request"
	"github.com/TimurManjosov/splitgate/internal/telemetry"
)

// Options configure a Gate.
type Options struct {
	Cookie marker.CookieOptions
	// Signals resolves host state. Nil means request.NewCookieSignals().
	Signals request.Signals
	// MarkExemptBypass writes a Bypass marker for exempt visitors that have no
	// valid marker yet, keeping them off the experiment for the marker TTL.
	MarkExemptBypass bool
	Logger           zerolog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Decision is the full record of one gate evaluation.
type Decision struct {
	ID              string               `json:"id" yaml:"id"`
	Path            string               `json:"path" yaml:"path"`
	Exempt          bool                 `json:"exempt" yaml:"exempt"`
	Predicate       classifier.Predicate `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Marker          marker.Marker        `json:"marker" yaml:"marker"`
	MalformedMarker bool                 `json:"malformedMarker,omitempty" yaml:"malformedMarker,omitempty"`
	Outcome         allocator.Outcome    `json:"outcome" yaml:"outcome"`
	SetMarker       *marker.Marker       `json:"setMarker,omitempty" yaml:"setMarker,omitempty"`
}

// Gate evaluates requests. It is safe for concurrent use.
type Gate struct {
	classifier *classifier.Classifier
	allocator  *allocator.Allocator
	opts       Options
}

// New returns a Gate.
func New(c *classifier.Classifier, a *allocator.Allocator, opts Options) *Gate {
	if opts.Signals == nil {
		opts.Signals = request.NewCookieSignals()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Cookie.Name == "" {
		opts.Cookie = marker.DefaultCookieOptions()
	}
	return &Gate{classifier: c, allocator: a, opts: opts}
}

// Evaluate classifies d and, when it is not exempt, allocates it using the
// raw marker cookie value. It has no side effects.
func (g *Gate) Evaluate(d request.Descriptor, rawMarker string, now time.Time) Decision {
	m, ok := marker.Parse(rawMarker)
	dec := Decision{
		ID:              uuid.NewString(),
		Path:            d.Path,
		Marker:          m,
		MalformedMarker: !ok,
	}

	if predicate, exempt := g.classifier.Explain(d); exempt {
		dec.Exempt = true
		dec.Predicate = predicate
		dec.Outcome = allocator.PassThrough(allocator.ReasonExempt)
		if g.opts.MarkExemptBypass && !m.Valid(now) {
			next := marker.New(marker.Bypass, now, g.opts.Cookie.TTL)
			dec.SetMarker = &next
		}
		return dec
	}

	dec.Outcome, dec.SetMarker = g.allocator.DecideFor(m, now, d.Path, queryValues(d.QueryParams))
	return dec
}

// Middleware gates every request before handing it to next. Redirect
// decisions end the request with a 302; everything else reaches next,
// carrying the new marker cookie when one was assigned.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := g.opts.Clock()
		dec, ok := g.evaluateRequest(r, request.FromHTTP, now)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		g.record(dec)
		g.setMarker(w, r, dec, now)

		if dec.Outcome.IsRedirect() {
			writeRedirect(w, r, dec.Outcome.TargetURL, dec.Outcome.Headers)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type descriptorFunc func(r *http.Request, signals request.Signals) request.Descriptor

// evaluateRequest never lets a failure in the decision core block the
// request: a panic is logged and reported as ok=false so the caller passes
// the request through untouched.
func (g *Gate) evaluateRequest(r *http.Request, build descriptorFunc, now time.Time) (dec Decision, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			g.opts.Logger.Error().
				Str("path", r.URL.Path).
				Str("panic", fmt.Sprint(rec)).
				Msg("gate evaluation failed, passing request through")
			ok = false
		}
	}()

	d := build(r, g.opts.Signals)
	raw := ""
	if c, err := r.Cookie(g.opts.Cookie.Name); err == nil {
		raw = c.Value
	}
	return g.Evaluate(d, raw, now), true
}

func (g *Gate) setMarker(w http.ResponseWriter, r *http.Request, dec Decision, now time.Time) {
	if dec.SetMarker == nil {
		return
	}
	http.SetCookie(w, marker.Cookie(*dec.SetMarker, g.opts.Cookie, r.Host, now))
}

func (g *Gate) record(dec Decision) {
	if dec.MalformedMarker {
		telemetry.MalformedMarkers.Inc()
		g.opts.Logger.Debug().Str("decision_id", dec.ID).Msg("malformed assignment marker treated as unset")
	}
	if dec.Exempt {
		telemetry.Exemptions.WithLabelValues(string(dec.Predicate)).Inc()
	}
	telemetry.Decisions.WithLabelValues(string(dec.Outcome.Kind), string(dec.Outcome.Reason)).Inc()

	evt := g.opts.Logger.Debug().
		Str("decision_id", dec.ID).
		Str("path", dec.Path).
		Bool("exempt", dec.Exempt).
		Str("outcome", string(dec.Outcome.Kind)).
		Str("reason", string(dec.Outcome.Reason))
	if dec.Predicate != "" {
		evt = evt.Str("predicate", string(dec.Predicate))
	}
	if dec.SetMarker != nil {
		evt = evt.Str("set_marker", dec.SetMarker.Value.String())
	}
	evt.Msg("gate decision")
}

func writeRedirect(w http.ResponseWriter, r *http.Request, target string, headers http.Header) {
	for k, vs := range headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func queryValues(params map[string]string) url.Values {
	if len(params) == 0 {
		return nil
	}
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return v
}
