package performance

import "math"

// Leader values for an axis comparison.
const (
	LeaderA    = "a"
	LeaderB    = "b"
	LeaderEven = "even"
)

// evenMargin is the score difference below which two players are level.
const evenMargin = 1.0

// AxisComparison compares one score axis.
type AxisComparison struct {
	Axis   string  `json:"axis"`
	A      float64 `json:"a"`
	B      float64 `json:"b"`
	Delta  float64 `json:"delta"`
	Leader string  `json:"leader"`
}

// Comparison is the side-by-side panel for two players.
type Comparison struct {
	Axes    []AxisComparison `json:"axes"`
	Overall AxisComparison   `json:"overall"`
}

// Compare returns per-axis deltas (b - a) and the stronger side of each.
func Compare(a, b Scores) Comparison {
	axes := []AxisComparison{
		compareAxis("technical", a.Technical, b.Technical),
		compareAxis("physical", a.Physical, b.Physical),
		compareAxis("tactical", a.Tactical, b.Tactical),
		compareAxis("mental", a.Mental, b.Mental),
	}
	return Comparison{
		Axes:    axes,
		Overall: compareAxis("overall", a.Overall, b.Overall),
	}
}

func compareAxis(axis string, a, b float64) AxisComparison {
	delta := round1(b - a)
	leader := LeaderEven
	switch {
	case math.Abs(delta) < evenMargin:
	case delta > 0:
		leader = LeaderB
	default:
		leader = LeaderA
	}
	return AxisComparison{Axis: axis, A: a, B: b, Delta: delta, Leader: leader}
}
