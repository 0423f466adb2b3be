package topology

import "github.com/gogpu/automata/model"

// link is one neighbor slot: the step to the neighbor and the index of the
// neighbor output it reads.
type link struct {
	step   func(row, col int) (dr, dc int)
	output int
}

func fixed(dr, dc int) func(int, int) (int, int) {
	return func(int, int) (int, int) { return dr, dc }
}

// alternating connects up on cells where row and column parity agree and
// down elsewhere.
func alternating(row, col int) (int, int) {
	if col%2 == row%2 {
		return -1, 0
	}
	return 1, 0
}

var strategies = map[string][]link{
	model.Neighbors3: {
		{fixed(0, -1), 2},
		{alternating, 1},
		{fixed(0, 1), 0},
	},
	model.Neighbors4: {
		{fixed(0, -1), 2},
		{fixed(-1, 0), 3},
		{fixed(0, 1), 0},
		{fixed(1, 0), 1},
	},
	// 1 2 3
	// 0 - 4
	// 7 6 5
	model.Neighbors8: {
		{fixed(0, -1), 4},
		{fixed(-1, -1), 5},
		{fixed(-1, 0), 6},
		{fixed(-1, 1), 7},
		{fixed(0, 1), 0},
		{fixed(1, 1), 1},
		{fixed(1, 0), 2},
		{fixed(1, -1), 3},
	},
}

// Degree returns the number of inputs per cell for a strategy, or 0.
func Degree(strategy string) int {
	return len(strategies[strategy])
}
