// Package weight implements weighted random selection over authored
// weight tables and named pools.
package weight

import (
	"github.com/nathoo/duskcore/engine/fault"
	"github.com/nathoo/duskcore/engine/rng"
	"github.com/nathoo/duskcore/types"
)

// Effective computes the effective weight of every entry. Explicit
// weights are used as-is; entries with the Omitted sentinel split the
// remainder of 100 − Σexplicit evenly. If the explicit sum already
// reaches 100 the remainder is 0 and omitted entries are unreachable —
// legal, but a validation concern upstream.
func Effective(options []types.WeightedOption) []float64 {
	explicit := 0.0
	omitted := 0
	for _, opt := range options {
		if opt.Weight == types.Omitted {
			omitted++
		} else {
			explicit += opt.Weight
		}
	}

	share := 0.0
	if omitted > 0 {
		remainder := 100 - explicit
		if remainder > 0 {
			share = remainder / float64(omitted)
		}
	}

	weights := make([]float64, len(options))
	for i, opt := range options {
		if opt.Weight == types.Omitted {
			weights[i] = share
		} else {
			weights[i] = opt.Weight
		}
	}
	return weights
}

// Select draws exactly one value from the table. Zero-weight entries are
// unreachable but legal. An empty table is a configuration error.
// Consumes one unit of randomness.
func Select(options []types.WeightedOption, r *rng.RNG) (any, error) {
	if len(options) == 0 {
		return nil, fault.Configf("empty weight table")
	}

	weights := Effective(options)
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		// All-zero table: nothing selectable.
		return nil, fault.Configf("weight table has no positive weights")
	}

	roll := r.Uniform(total)
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if roll < cumulative {
			return options[i].Value, nil
		}
	}
	return options[len(options)-1].Value, nil
}

// SelectN draws count values with replacement, in draw order.
func SelectN(options []types.WeightedOption, count int, r *rng.RNG) ([]any, error) {
	results := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := Select(options, r)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

// SelectNNoReplace draws up to count distinct entries without
// replacement. Drawn entries are excluded from subsequent draws; the
// result is shorter than count when the table runs out of reachable
// entries.
func SelectNNoReplace(options []types.WeightedOption, count int, r *rng.RNG) ([]any, error) {
	if len(options) == 0 {
		return nil, fault.Configf("empty weight table")
	}

	pool := make([]types.WeightedOption, len(options))
	copy(pool, options)

	var results []any
	for i := 0; i < count && len(pool) > 0; i++ {
		weights := Effective(pool)
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if total <= 0 {
			break
		}
		roll := r.Uniform(total)
		cumulative := 0.0
		picked := len(pool) - 1
		for j, w := range weights {
			cumulative += w
			if roll < cumulative {
				picked = j
				break
			}
		}
		results = append(results, pool[picked].Value)
		pool = append(pool[:picked], pool[picked+1:]...)
	}
	return results, nil
}

// Text resolves a text variant: plain text passes through; weighted
// variants draw one option. Missing text resolves to the fallback
// without consuming randomness.
func Text(tv types.TextVariant, fallback string, r *rng.RNG) string {
	if tv.Text != "" {
		return tv.Text
	}
	if len(tv.Options) == 0 {
		return fallback
	}
	v, err := Select(tv.Options, r)
	if err != nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}
