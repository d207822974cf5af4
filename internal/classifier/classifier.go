// Package classifier decides whether a request is exempt from the split.
//
// A request is exempt when any predicate matches: non-GET methods, crawlers
// and monitors, login and admin surfaces, API and AJAX entry points, core
// assets and crawler metadata, signed-in or admin sessions, webhooks,
// cart/checkout/account pages, blog content, and live commerce sessions.
// Everything else is safe to split.
//
// The classifier is pure: it reads only the Descriptor it is given and is safe
// for concurrent use.
package classifier

import "github.com/TimurManjosov/splitgate/internal/request"

// Classifier evaluates the exemption predicates.
type Classifier struct {
	surfaces  Surfaces
	pathHints bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSurfaces replaces the default surface markers.
func WithSurfaces(s Surfaces) Option {
	return func(c *Classifier) { c.surfaces = s }
}

// WithPathHints controls whether commerce and content pages are also detected
// from the path when the host could not resolve a page type. On by default.
func WithPathHints(enabled bool) Option {
	return func(c *Classifier) { c.pathHints = enabled }
}

// New returns a Classifier with DefaultSurfaces and path hints enabled.
func New(opts ...Option) *Classifier {
	c := &Classifier{surfaces: DefaultSurfaces(), pathHints: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsExempt reports whether any predicate matches d.
func (c *Classifier) IsExempt(d request.Descriptor) bool {
	_, exempt := c.Explain(d)
	return exempt
}

// Explain returns the first predicate that matches d, in evaluation order.
func (c *Classifier) Explain(d request.Descriptor) (Predicate, bool) {
	for _, p := range predicateOrder {
		if p.handler.Check(&d, &c.surfaces, c.pathHints) {
			return p.name, true
		}
	}
	return "", false
}

// Evaluate runs every predicate without short-circuiting.
func (c *Classifier) Evaluate(d request.Descriptor) []Match {
	matches := make([]Match, 0, len(predicateOrder))
	for _, p := range predicateOrder {
		matches = append(matches, Match{
			Predicate: p.name,
			Matched:   p.handler.Check(&d, &c.surfaces, c.pathHints),
		})
	}
	return matches
}

// Predicates lists predicate names in evaluation order.
func Predicates() []Predicate {
	names := make([]Predicate, len(predicateOrder))
	for i, p := range predicateOrder {
		names[i] = p.name
	}
	return names
}
