// Package rollout draws the lottery that buckets a not-yet-assigned visitor.
//
// Each draw is an independent uniform integer in [1,100] taken from
// crypto/rand. Draws are never derived from the clock or from shared counters:
// two visitors arriving in the same instant must get uncorrelated outcomes.
// Stickiness is the marker's job, not the lottery's.
package rollout

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// ErrInvalidRatio is returned when the split ratio is not in the valid range (0-100).
var ErrInvalidRatio = errors.New("split ratio must be between 0 and 100")

const (
	minDraw = 1
	maxDraw = 100
)

// Source produces lottery draws.
// Implementations must be safe for concurrent use.
type Source interface {
	// Draw returns a uniform integer in [1,100].
	Draw() int
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

var drawSpan = big.NewInt(maxDraw - minDraw + 1)

// Draw implements Source. If the system RNG fails the draw is maxDraw, which
// misses every ratio below 100 and keeps the visitor on the main origin.
func (CryptoSource) Draw() int {
	n, err := rand.Int(rand.Reader, drawSpan)
	if err != nil {
		return maxDraw
	}
	return int(n.Int64()) + minDraw
}

// Fixed always draws the same number. Values outside [1,100] are clamped.
type Fixed int

// Draw implements Source.
func (f Fixed) Draw() int {
	switch {
	case int(f) < minDraw:
		return minDraw
	case int(f) > maxDraw:
		return maxDraw
	default:
		return int(f)
	}
}

// Sequence replays draws in order and then repeats the last one.
// It is not safe for concurrent use and exists for tests and simulations.
type Sequence struct {
	draws []int
	next  int
}

// NewSequence returns a Sequence over draws.
func NewSequence(draws ...int) *Sequence {
	return &Sequence{draws: draws}
}

// Draw implements Source.
func (s *Sequence) Draw() int {
	if len(s.draws) == 0 {
		return maxDraw
	}
	i := s.next
	if i >= len(s.draws) {
		i = len(s.draws) - 1
	} else {
		s.next++
	}
	return Fixed(s.draws[i]).Draw()
}

// ValidateRatio checks that ratio is a percentage.
func ValidateRatio(ratio int) error {
	if ratio < 0 || ratio > 100 {
		return ErrInvalidRatio
	}
	return nil
}

// Hit runs one lottery draw against ratio.
//
// Special cases:
//   - ratio=0: always false, no draw is taken
//   - ratio=100: always true, no draw is taken
//
// Otherwise the visitor wins when draw <= ratio, so ratio=20 wins on 1..20.
func Hit(src Source, ratio int) (bool, error) {
	if err := ValidateRatio(ratio); err != nil {
		return false, err
	}
	if ratio == 0 {
		return false, nil
	}
	if ratio == 100 {
		return true, nil
	}
	return src.Draw() <= ratio, nil
}
