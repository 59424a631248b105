package renderer

// growthFactor is the multiplicative step for the instance/indirection
// buffers. Capacity only ever grows; shrinking instance counts never shrink
// a buffer.
const growthFactor = 1.618

// GrowCapacity returns the new capacity for a buffer that must hold at least
// required bytes. A single call reaches the target: the factor is applied
// once and the result raised to required if the jump was not enough.
func GrowCapacity(current, required uint64) uint64 {
	if required <= current {
		return current
	}
	grown := uint64(float64(current) * growthFactor)
	if grown < required {
		grown = required
	}
	return grown
}
