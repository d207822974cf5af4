// Package snapshot holds the read-only view of the active experiment settings
// that the API serves. The view is swapped atomically and carries an ETag so
// clients can poll it cheaply with If-None-Match.
package snapshot

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SettingsView is the public description of the running experiment.
type SettingsView struct {
	VariantURL       string   `json:"variantUrl" yaml:"variantUrl"`
	HomeURL          string   `json:"homeUrl" yaml:"homeUrl"`
	SplitRatio       int      `json:"splitRatio" yaml:"splitRatio"`
	MarkerName       string   `json:"markerName" yaml:"markerName"`
	MarkerTTL        string   `json:"markerTtl" yaml:"markerTtl"`
	MarkerDomain     string   `json:"markerDomain,omitempty" yaml:"markerDomain,omitempty"`
	MarkerHTTPOnly   bool     `json:"markerHttpOnly" yaml:"markerHttpOnly"`
	MarkerSecure     bool     `json:"markerSecure" yaml:"markerSecure"`
	PreservePath     bool     `json:"preservePath" yaml:"preservePath"`
	MarkExemptBypass bool     `json:"markExemptBypass" yaml:"markExemptBypass"`
	PathHints        bool     `json:"pathHints" yaml:"pathHints"`
	Predicates       []string `json:"predicates" yaml:"predicates"`
	Policy           string   `json:"policy" yaml:"policy"`
}

type Snapshot struct {
	ETag      string       `json:"etag" yaml:"etag"`
	Settings  SettingsView `json:"settings" yaml:"settings"`
	UpdatedAt time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

var current atomic.Pointer[Snapshot]

// Load returns the current snapshot, or an empty one before the first Update.
func Load() *Snapshot {
	if s := current.Load(); s != nil {
		return s
	}
	return &Snapshot{ETag: "", UpdatedAt: time.Now().UTC()}
}

// Build fingerprints view. Identical views always get identical ETags.
func Build(view SettingsView) *Snapshot {
	blob, _ := json.Marshal(view)
	etag := `W/"` + strconv.FormatUint(xxhash.Sum64(blob), 16) + `"`
	return &Snapshot{ETag: etag, Settings: view, UpdatedAt: time.Now().UTC()}
}

func Update(s *Snapshot) {
	current.Store(s)
}
