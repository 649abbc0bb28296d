package common

import "cmp"

// Coalesce returns the first of values that is not the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp limits v to the closed range [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// AlignUp rounds value up to the next multiple of alignment.
//
// Parameters:
//   - value: the value to round
//   - alignment: the alignment, must be > 0
//
// Returns:
//   - uint64: the aligned value
func AlignUp(value, alignment uint64) uint64 {
	return (value + alignment - 1) / alignment * alignment
}
