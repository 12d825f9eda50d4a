/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: faults.go
Description: Fault injection strategies for the Akaylee DFA engine. Implements the
XOR corruption primitive applied to address ranges of the reference table, and the
fault budget that controls how many masks are tried once a candidate location has
been found.
*/

package strategies

import (
	"math/rand"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// XORInjector implements the table corruption strategy
// Produces a full copy of the reference table with every byte of the
// target range XORed against the fault mask
type XORInjector struct{}

// NewXORInjector creates a new XOR fault injector
func NewXORInjector() *XORInjector {
	return &XORInjector{}
}

// Inject returns a corrupted copy of the table. The original is never
// touched. Out-of-bounds ranges are clamped to the table, matching the
// permissive slicing replayed logs rely on.
func (j *XORInjector) Inject(table []byte, r interfaces.Range, mask byte) []byte {
	corrupted := make([]byte, len(table))
	copy(corrupted, table)
	for i := r.Start; i < r.End && i < uint64(len(corrupted)); i++ {
		corrupted[i] ^= mask
	}
	return corrupted
}

// Name returns the name of this injector
func (j *XORInjector) Name() string {
	return "XORInjector"
}

// Description returns a description of this injector
func (j *XORInjector) Description() string {
	return "XORs a fault mask over a byte range of the reference table"
}

// Budget tracks the fault masks still to be tried at one location
// Either an ordered list of explicit masks or a count of random trials;
// values are immutable and consumed through Next()
type Budget struct {
	masks  []byte // Ordered XOR masks; nil selects random mode
	random int    // Remaining random trials in random mode
}

// NewMaskBudget creates a budget that tries the given masks in order
func NewMaskBudget(masks []byte) Budget {
	return Budget{masks: masks}
}

// NewRandomBudget creates a budget of n randomly chosen masks
func NewRandomBudget(n int) Budget {
	return Budget{random: n}
}

// Pick returns the mask for the current trial. In random mode a fresh
// mask in [1, 255] is drawn from rng, so zero (a no-op fault) never
// comes up by chance.
func (b Budget) Pick(rng *rand.Rand) byte {
	if len(b.masks) > 0 {
		return b.masks[0]
	}
	return byte(1 + rng.Intn(255))
}

// More reports whether trials remain beyond the current one
func (b Budget) More() bool {
	if b.masks != nil {
		return len(b.masks) > 1
	}
	return b.random > 1
}

// Next returns the budget with the current trial consumed
func (b Budget) Next() Budget {
	if b.masks != nil {
		return Budget{masks: b.masks[1:]}
	}
	return Budget{random: b.random - 1}
}
