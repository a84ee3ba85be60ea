// Package engine implements the exam attempt state machine: presentation-order
// shuffling, answer capture keyed by original question index, the countdown
// timer with one-shot auto-submit, and score computation.
package engine

import (
	"fmt"
	"math/rand"
)

// Permutation is the bidirectional mapping between presentation order (what
// the student sees) and original order (the canonical authoring-time question
// list). All grading and review is keyed by original index; the permutation is
// the only place the two orders meet.
type Permutation struct {
	order   []int // presentation index -> original index
	inverse []int // original index -> presentation index
}

// Identity returns the permutation that presents questions in original order.
func Identity(n int) Permutation {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return Permutation{order: order, inverse: append([]int(nil), order...)}
}

// Shuffled returns a uniform random permutation of n questions. It is computed
// once at attempt start and fixed for the attempt's lifetime.
func Shuffled(n int, rng *rand.Rand) Permutation {
	p, _ := FromOrder(rng.Perm(n))
	return p
}

// FromOrder reconstructs a permutation from a persisted presentation order.
// The slice must contain each index in [0,len) exactly once.
func FromOrder(order []int) (Permutation, error) {
	n := len(order)
	inverse := make([]int, n)
	seen := make([]bool, n)
	for pres, orig := range order {
		if orig < 0 || orig >= n {
			return Permutation{}, fmt.Errorf("permutation: index %d out of range [0,%d)", orig, n)
		}
		if seen[orig] {
			return Permutation{}, fmt.Errorf("permutation: duplicate index %d", orig)
		}
		seen[orig] = true
		inverse[orig] = pres
	}
	return Permutation{order: append([]int(nil), order...), inverse: inverse}, nil
}

// Len returns the number of questions.
func (p Permutation) Len() int {
	return len(p.order)
}

// Original maps a presentation index to the original question index.
func (p Permutation) Original(presentation int) (int, error) {
	if presentation < 0 || presentation >= len(p.order) {
		return 0, fmt.Errorf("permutation: presentation index %d out of range [0,%d)", presentation, len(p.order))
	}
	return p.order[presentation], nil
}

// Presentation maps an original question index to its presentation position.
func (p Permutation) Presentation(original int) (int, error) {
	if original < 0 || original >= len(p.inverse) {
		return 0, fmt.Errorf("permutation: original index %d out of range [0,%d)", original, len(p.inverse))
	}
	return p.inverse[original], nil
}

// Order returns a copy of the presentation order for persistence.
func (p Permutation) Order() []int {
	return append([]int(nil), p.order...)
}

// IsIdentity reports whether the permutation presents questions unshuffled.
func (p Permutation) IsIdentity() bool {
	for i, v := range p.order {
		if i != v {
			return false
		}
	}
	return true
}
