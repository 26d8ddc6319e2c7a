// Package rng provides the process-wide deterministic random source.
// Position increments with every draw, enabling exact save/restore:
// the same seed and draw count always reproduce the same stream.
package rng

import "math/rand"

// RNG wraps math/rand.Rand with deterministic position tracking.
type RNG struct {
	seed int64
	src  *rand.Rand
	pos  int64
}

// New creates a deterministic RNG from a seed.
func New(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// Roll returns a random integer in [1, sides]. Every draw consumes
// exactly one source value, so Restore can replay by count.
func (r *RNG) Roll(sides int) int {
	r.pos++
	return int(r.src.Int63()%int64(sides)) + 1
}

// Uniform returns a random float in [0, limit). Each call consumes
// exactly one source value regardless of limit.
func (r *RNG) Uniform(limit float64) float64 {
	r.pos++
	return float64(r.src.Int63()) / (1 << 63) * limit
}

// Percent returns a random integer in [1, 100].
func (r *RNG) Percent() int {
	return r.Roll(100)
}

// Seed returns the seed this RNG was created from.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}

// Restore creates an RNG and advances it to the given position,
// reproducing the exact generator state for save/load.
func Restore(seed int64, position int64) *RNG {
	r := New(seed)
	for i := int64(0); i < position; i++ {
		r.src.Int63()
	}
	r.pos = position
	return r
}
