package allocator

import "net/http"

// Kind is the action the host pipeline must take.
type Kind string

const (
	KindPassThrough Kind = "pass_through"
	KindRedirect    Kind = "redirect"
)

// Reason explains how an outcome was reached.
type Reason string

const (
	ReasonExempt        Reason = "EXEMPT"
	ReasonStickyBypass  Reason = "STICKY_BYPASS"
	ReasonStickyControl Reason = "STICKY_CONTROL"
	ReasonStickyVariant Reason = "STICKY_VARIANT"
	ReasonLotteryHit    Reason = "LOTTERY_HIT"
	ReasonLotteryMiss   Reason = "LOTTERY_MISS"
)

// Outcome is the allocator's verdict.
type Outcome struct {
	Kind      Kind        `json:"kind" yaml:"kind"`
	TargetURL string      `json:"targetUrl,omitempty" yaml:"targetUrl,omitempty"`
	Status    int         `json:"status,omitempty" yaml:"status,omitempty"`
	Headers   http.Header `json:"headers,omitempty" yaml:"headers,omitempty"`
	Reason    Reason      `json:"reason" yaml:"reason"`
}

// IsRedirect reports whether the host must redirect.
func (o Outcome) IsRedirect() bool {
	return o.Kind == KindRedirect
}

// PassThrough leaves the request to the host.
func PassThrough(reason Reason) Outcome {
	return Outcome{Kind: KindPassThrough, Reason: reason}
}

// Redirect sends the visitor to target with a temporary redirect that the
// browser must not cache.
func Redirect(target string, reason Reason) Outcome {
	return Outcome{
		Kind:      KindRedirect,
		TargetURL: target,
		Status:    http.StatusFound,
		Headers:   NoStoreHeaders(),
		Reason:    reason,
	}
}

// NoStoreHeaders returns the cache-busting headers sent with every redirect.
func NoStoreHeaders() http.Header {
	h := make(http.Header, 3)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	return h
}
