// Package performance turns a motion series into the four score axes shown on
// the player dashboard (technical, physical, tactical, mental) and compares
// two players' scores.
package performance

// Baselines describe an average outfield player in the generated series.
// A metric equal to its baseline contributes RatingBaseline points.
const (
	BaselineAverageSpeed = 5.0  // m/s
	BaselineTopSpeed     = 8.0  // m/s
	BaselineDistanceRate = 20.0 // px/s of box-center travel
	BaselineSpread       = 45.0 // px standard deviation of position
	BaselineBoxStability = 0.85 // 1 - coefficient of variation of box area
	BaselineSpeedControl = 0.70 // 1 - coefficient of variation of speed
)

// SprintThreshold is the speed above which a sample counts as a sprint.
const SprintThreshold = 7.0

// Score bounds.
const (
	RatingBaseline = 60.0
	MinScore       = 0.0
	MaxScore       = 100.0
)

// Physical sub-weights.
const (
	PhysicalAverageWeight  = 0.5
	PhysicalTopWeight      = 0.3
	PhysicalDistanceWeight = 0.2
)

// Overall weights, summing to 1.
const (
	TechnicalWeight = 0.30
	PhysicalWeight  = 0.25
	TacticalWeight  = 0.25
	MentalWeight    = 0.20
)
