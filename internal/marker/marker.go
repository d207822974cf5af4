// Package marker encodes the client-side assignment marker that keeps a
// visitor in the same bucket across requests.
//
// Wire format is "<token>.<unix-expiry>", for example "variant.1760572800".
// Bare "bypass" and "lottery" tokens without an expiry are still accepted so
// markers issued by earlier deployments keep working until the browser drops them.
package marker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value is the recorded allocation.
type Value int

const (
	// Unset means no usable marker; the client is eligible for the lottery.
	Unset Value = iota
	// Bypass exempts the client from the experiment until expiry.
	Bypass
	// VariantA is the control bucket: the client lost the lottery and stays on the main origin.
	VariantA
	// VariantB is the redirected bucket.
	VariantB
)

const (
	tokenBypass   = "bypass"
	tokenVariantA = "lottery"
	tokenVariantB = "variant"
)

// String returns the wire token for v.
func (v Value) String() string {
	switch v {
	case Bypass:
		return tokenBypass
	case VariantA:
		return tokenVariantA
	case VariantB:
		return tokenVariantB
	default:
		return "unset"
	}
}

// MarshalText encodes v as its token.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts the tokens produced by MarshalText.
func (v *Value) UnmarshalText(b []byte) error {
	if string(b) == "unset" || len(b) == 0 {
		*v = Unset
		return nil
	}
	parsed, ok := parseToken(string(b))
	if !ok {
		return fmt.Errorf("unknown marker value %q", b)
	}
	*v = parsed
	return nil
}

// Terminal reports whether v records a decision.
func (v Value) Terminal() bool {
	return v == Bypass || v == VariantA || v == VariantB
}

// Marker is the logical content of the assignment cookie.
// A zero ExpiresAt means the expiry is unknown and left to the browser.
type Marker struct {
	Value     Value     `json:"value" yaml:"value"`
	ExpiresAt time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

// New returns a marker holding v that expires ttl after now.
func New(v Value, now time.Time, ttl time.Duration) Marker {
	return Marker{Value: v, ExpiresAt: now.Add(ttl).UTC().Truncate(time.Second)}
}

// Valid reports whether m holds a terminal value that has not expired at now.
func (m Marker) Valid(now time.Time) bool {
	if !m.Value.Terminal() {
		return false
	}
	return m.ExpiresAt.IsZero() || now.Before(m.ExpiresAt)
}

// Encode returns the cookie value for m. Unset markers encode to "".
func (m Marker) Encode() string {
	if !m.Value.Terminal() {
		return ""
	}
	if m.ExpiresAt.IsZero() {
		return m.Value.String()
	}
	return m.Value.String() + "." + strconv.FormatInt(m.ExpiresAt.Unix(), 10)
}

// Parse decodes a cookie value. It never fails: anything it cannot read is
// returned as an Unset marker with ok=false so callers can log it.
func Parse(raw string) (m Marker, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Marker{}, true
	}

	token, expiry, hasExpiry := strings.Cut(raw, ".")
	v, known := parseToken(token)
	if !known {
		return Marker{}, false
	}
	if !hasExpiry {
		// Only the legacy tokens were ever written without an expiry.
		if v == VariantB {
			return Marker{}, false
		}
		return Marker{Value: v}, true
	}

	secs, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil || secs <= 0 {
		return Marker{}, false
	}
	return Marker{Value: v, ExpiresAt: time.Unix(secs, 0).UTC()}, true
}

func parseToken(token string) (Value, bool) {
	switch strings.ToLower(token) {
	case tokenBypass:
		return Bypass, true
	case tokenVariantA:
		return VariantA, true
	case tokenVariantB:
		return VariantB, true
	default:
		return Unset, false
	}
}
