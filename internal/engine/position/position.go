// Package position allocates sort keys for ordered siblings (lists in a board,
// cards in a list, checklist items). Keys are float64 values spaced Gap apart so
// that most inserts and moves touch a single row.
package position

const (
	// Gap is the spacing between consecutive appended positions.
	Gap = 65535.0

	// MinGap is the smallest spacing tolerated between neighbours before a
	// scope is renumbered.
	MinGap = 1.0
)

// Append returns the position for a new item placed after last, or Gap for an
// empty scope.
func Append(last *float64) float64 {
	if last == nil {
		return Gap
	}
	return *last + Gap
}

// Between returns a position strictly between prev and next, where a nil
// neighbour means the start or end of the scope.
func Between(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return Gap
	case prev == nil:
		return *next / 2
	case next == nil:
		return *prev + Gap
	default:
		return (*prev + *next) / 2
	}
}

// NeedsRebalance reports whether an ascending sequence of positions has two
// neighbours closer than MinGap, or a first position below MinGap (which
// leaves no room to insert at the head).
func NeedsRebalance(positions []float64) bool {
	if len(positions) == 0 {
		return false
	}
	if positions[0] < MinGap {
		return true
	}
	for i := 1; i < len(positions); i++ {
		if positions[i]-positions[i-1] < MinGap {
			return true
		}
	}
	return false
}

// Rebalance returns n evenly spaced positions Gap, 2*Gap, ... n*Gap.
func Rebalance(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Gap * float64(i+1)
	}
	return out
}

// Ptr is a convenience for passing literal neighbours.
func Ptr(v float64) *float64 {
	return &v
}
