package allocator

import (
	"time"

	"github.com/TimurManjosov/splitgate/internal/marker"
)

// SimulationResult summarises Simulate.
type SimulationResult struct {
	Trials    int     `json:"trials" yaml:"trials"`
	Ratio     int     `json:"ratio" yaml:"ratio"`
	Redirects int     `json:"redirects" yaml:"redirects"`
	Controls  int     `json:"controls" yaml:"controls"`
	Rate      float64 `json:"rate" yaml:"rate"`
	// StickyViolations counts visitors whose second visit, carrying the
	// marker from the first, got a different outcome. Always zero unless the
	// sticky invariant is broken.
	StickyViolations int `json:"stickyViolations" yaml:"stickyViolations"`
}

// Simulate allocates trials fresh visitors at now and replays each one's
// marker once. Rate is the percentage of visitors redirected.
func Simulate(a *Allocator, trials int, now time.Time) SimulationResult {
	res := SimulationResult{Trials: trials, Ratio: a.settings.Ratio}
	if trials <= 0 {
		return res
	}
	for i := 0; i < trials; i++ {
		first, m := a.Decide(marker.Marker{}, now)
		if first.IsRedirect() {
			res.Redirects++
		} else {
			res.Controls++
		}
		if m == nil {
			continue
		}
		again, _ := a.Decide(*m, now)
		if again.Kind != first.Kind {
			res.StickyViolations++
		}
	}
	res.Rate = float64(res.Redirects) / float64(trials) * 100
	return res
}
