// Package allocator decides, for a visitor that is not exempt, whether to
// redirect to the variant origin or let the request through.
//
// Allocation policy:
//
// The allocator is stateful through the marker. The first decision for a
// visitor is recorded for the marker TTL: a lottery win writes VariantB and a
// loss writes VariantA. While that marker is valid the lottery is not run
// again, so a visitor never flips between origins mid-session.
//
// Decision order (each step short-circuits):
//  1. Bypass or VariantA marker, not expired → PassThrough, no new marker
//  2. VariantB marker, not expired → Redirect to the variant, no new marker
//  3. No valid marker → lottery with p = ratio/100
//     - hit: Redirect + VariantB marker
//     - miss: PassThrough + VariantA marker
//
// Malformed markers reach the allocator as Unset and simply trigger a draw.
package allocator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/TimurManjosov/splitgate/internal/marker"
	"github.com/TimurManjosov/splitgate/internal/rollout"
)

// ErrInvalidVariantURL is returned when the variant origin is not an absolute http(s) URL.
var ErrInvalidVariantURL = errors.New("variant URL must be an absolute http or https URL")

// Settings configure an Allocator.
type Settings struct {
	VariantURL string
	Ratio      int
	TTL        time.Duration
	// PreservePath appends the visitor's path and query to VariantURL.
	PreservePath bool
}

// Allocator runs the sticky lottery. It holds no mutable state and is safe
// for concurrent use as long as its Source is.
type Allocator struct {
	settings Settings
	variant  *url.URL
	source   rollout.Source
}

// New validates settings and returns an Allocator. A nil source means crypto/rand.
func New(settings Settings, source rollout.Source) (*Allocator, error) {
	if err := rollout.ValidateRatio(settings.Ratio); err != nil {
		return nil, err
	}
	u, err := ParseVariantURL(settings.VariantURL)
	if err != nil {
		return nil, err
	}
	if settings.TTL <= 0 {
		return nil, fmt.Errorf("marker TTL must be positive, got %s", settings.TTL)
	}
	if source == nil {
		source = rollout.CryptoSource{}
	}
	return &Allocator{settings: settings, variant: u, source: source}, nil
}

// ParseVariantURL checks that raw is an absolute http(s) URL.
func ParseVariantURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVariantURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidVariantURL
	}
	return u, nil
}

// Settings returns the allocator's settings.
func (a *Allocator) Settings() Settings {
	return a.settings
}

// Decide allocates a visitor with no path context. The redirect target is
// the bare variant URL.
func (a *Allocator) Decide(m marker.Marker, now time.Time) (Outcome, *marker.Marker) {
	return a.DecideFor(m, now, "", nil)
}

// DecideFor is Decide with the visitor's path and query, used when
// PreservePath is enabled.
func (a *Allocator) DecideFor(m marker.Marker, now time.Time, path string, query url.Values) (Outcome, *marker.Marker) {
	if m.Valid(now) {
		switch m.Value {
		case marker.Bypass:
			return PassThrough(ReasonStickyBypass), nil
		case marker.VariantA:
			return PassThrough(ReasonStickyControl), nil
		case marker.VariantB:
			return Redirect(a.target(path, query), ReasonStickyVariant), nil
		}
	}

	// The ratio was validated in New.
	hit, _ := rollout.Hit(a.source, a.settings.Ratio)
	if hit {
		next := marker.New(marker.VariantB, now, a.settings.TTL)
		return Redirect(a.target(path, query), ReasonLotteryHit), &next
	}
	next := marker.New(marker.VariantA, now, a.settings.TTL)
	return PassThrough(ReasonLotteryMiss), &next
}

func (a *Allocator) target(path string, query url.Values) string {
	if !a.settings.PreservePath || (path == "" && len(query) == 0) {
		return a.variant.String()
	}
	u := *a.variant
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}
