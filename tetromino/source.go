// tetromino/source.go
package tetromino

import "math/rand/v2"

// Source deals piece types with a 7-bag randomizer: every aligned run of
// seven draws contains each type exactly once.
type Source struct {
	rng     *rand.Rand
	pending []Type
}

// NewSource creates a bag source. A nil rng falls back to a randomly seeded one.
func NewSource(rng *rand.Rand) *Source {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Source{rng: rng}
}

// Next consumes the next type, refilling the bag when it runs dry.
func (s *Source) Next() Type {
	if len(s.pending) == 0 {
		s.refill()
	}
	t := s.pending[0]
	s.pending = s.pending[1:]
	return t
}

// Peek returns the next n types without consuming them.
func (s *Source) Peek(n int) []Type {
	if n <= 0 {
		return nil
	}
	for len(s.pending) < n {
		s.refill()
	}
	out := make([]Type, n)
	copy(out, s.pending[:n])
	return out
}

// Reset discards any dealt-ahead bags.
func (s *Source) Reset() {
	s.pending = s.pending[:0]
}

func (s *Source) refill() {
	bag := Types()
	s.rng.Shuffle(len(bag), func(i, j int) {
		bag[i], bag[j] = bag[j], bag[i]
	})
	s.pending = append(s.pending, bag...)
}
