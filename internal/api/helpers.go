package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/TimurManjosov/splitgate/internal/gate"
)

// ===== HTTP Helpers =====

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ===== Query Helpers =====

// probeFromQuery reads a dry-run probe from the decide endpoint's query.
//
// Parameters:
//
//	url or path     page to evaluate (default "/")
//	method          HTTP method (default GET)
//	ua              User-Agent header
//	cookie          repeated, "name" or "name=value"
//	page_type       post, cart, checkout, account
//	authenticated   boolean
//	marker          raw assignment cookie value
//
// Returns field-level errors for values that cannot be parsed.
func probeFromQuery(q url.Values) (gate.Probe, map[string]string) {
	fields := map[string]string{}

	target := q.Get("url")
	if target == "" {
		target = q.Get("path")
	}
	if target == "" {
		target = "/"
	}

	p := gate.Probe{
		URL:       target,
		Method:    q.Get("method"),
		UserAgent: q.Get("ua"),
		Cookies:   q["cookie"],
		PageType:  q.Get("page_type"),
		Marker:    q.Get("marker"),
	}

	if raw := q.Get("authenticated"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fields["authenticated"] = "must be a boolean"
		}
		p.Authenticated = b
	}
	if p.Method != "" && strings.ContainsAny(p.Method, " \t/") {
		fields["method"] = "must be an HTTP method"
	}

	if len(fields) == 0 {
		return p, nil
	}
	return p, fields
}
