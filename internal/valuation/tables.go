package valuation

// Position multipliers. Attacking roles command a premium.
var positionMultipliers = map[string]float64{
	"goalkeeper": 0.70,
	"defender":   0.85,
	"midfielder": 1.00,
	"winger":     1.10,
	"forward":    1.20,
}

// League tier multipliers, tier 1 being the top divisions.
var leagueMultipliers = map[int]float64{
	1: 1.50,
	2: 1.00,
	3: 0.60,
	4: 0.35,
}

// ageBand maps an age range to a value multiplier and a monthly drift.
type ageBand struct {
	maxAge     int
	multiplier float64
	drift      float64
}

// Bands are ordered by maxAge; the first band whose maxAge >= age applies.
var ageBands = []ageBand{
	{maxAge: 20, multiplier: 1.30, drift: 0.018},
	{maxAge: 23, multiplier: 1.20, drift: 0.010},
	{maxAge: 27, multiplier: 1.00, drift: 0.004},
	{maxAge: 30, multiplier: 0.80, drift: -0.004},
	{maxAge: 33, multiplier: 0.55, drift: -0.012},
	{maxAge: 45, multiplier: 0.30, drift: -0.020},
}

const (
	// BaseValue is the value of an average player (overall 60) at multiplier 1, in EUR.
	BaseValue = 2_000_000.0
	// MinValue floors every forecast point.
	MinValue = 50_000.0
	// DefaultMonths is the forecast horizon.
	DefaultMonths = 24
	// Volatility scales the monthly random shock.
	Volatility = 0.03
	// performanceElasticity controls how steeply value grows with the overall score.
	performanceElasticity = 2.0
	minAge                = 15
	maxAge                = 45
)
