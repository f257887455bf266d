package slab

// GrowthPolicy decides how many slots to commit when a store runs out of
// free slots. Policies are pure functions of the current capacity, so one
// policy value can be shared by any number of stores and merging two stores
// never needs to reconcile policy state.
type GrowthPolicy interface {
	// NextBlockSize returns the number of slots to commit next, given the
	// store's current committed capacity. Results below 1 are treated as 1.
	NextBlockSize(capacity int) int
}

// DefaultFirstBlockSize is the first block committed by the default policy.
const DefaultFirstBlockSize = 16

// DefaultGrowthPolicy returns the policy used when none is configured:
// geometric doubling starting from DefaultFirstBlockSize.
func DefaultGrowthPolicy() GrowthPolicy {
	return GeometricGrowth{Initial: DefaultFirstBlockSize, Factor: 2}
}

// ConstantGrowth commits the same number of slots on every growth.
type ConstantGrowth struct {
	// Block is the number of slots per growth. Values below 2 become 2, so
	// the first block always yields at least one usable slot beyond the
	// reserved zero slot.
	Block int
}

// NextBlockSize implements GrowthPolicy.
func (g ConstantGrowth) NextBlockSize(int) int {
	if g.Block < 2 {
		return 2
	}
	return g.Block
}

// GeometricGrowth commits blocks that keep multiplying the capacity, giving
// amortized O(1) growth cost at the price of up to Factor-1 times overshoot.
type GeometricGrowth struct {
	// Initial is the first block size. Values below 2 become
	// DefaultFirstBlockSize.
	Initial int
	// Factor is the target capacity multiplier per growth. Values at or
	// below 1 become 2.
	Factor float64
}

// NextBlockSize implements GrowthPolicy.
func (g GeometricGrowth) NextBlockSize(capacity int) int {
	initial := g.Initial
	if initial < 2 {
		initial = DefaultFirstBlockSize
	}
	if capacity == 0 {
		return initial
	}

	factor := g.Factor
	if factor <= 1 {
		factor = 2
	}

	next := int(float64(capacity) * (factor - 1))
	if next < initial {
		next = initial
	}
	return next
}
