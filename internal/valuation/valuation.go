// Package valuation projects a player's market value from static multiplier
// tables and a seeded random walk with drift.
package valuation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// ErrInvalidProfile is returned for profiles outside the supported tables.
var ErrInvalidProfile = errors.New("valuation: invalid profile")

// Profile is the scouting information needed for a forecast.
type Profile struct {
	Age        int    `json:"age"`
	Position   string `json:"position"`
	LeagueTier int    `json:"league_tier"`
}

// Validate checks the profile against the multiplier tables.
func (p Profile) Validate() error {
	if p.Age < minAge || p.Age > maxAge {
		return fmt.Errorf("%w: age %d outside %d-%d", ErrInvalidProfile, p.Age, minAge, maxAge)
	}
	if _, ok := positionMultipliers[strings.ToLower(p.Position)]; !ok {
		return fmt.Errorf("%w: unknown position %q", ErrInvalidProfile, p.Position)
	}
	if _, ok := leagueMultipliers[p.LeagueTier]; !ok {
		return fmt.Errorf("%w: unknown league tier %d", ErrInvalidProfile, p.LeagueTier)
	}
	return nil
}

// Point is one month of the forecast.
type Point struct {
	Month int     `json:"month"`
	Value float64 `json:"value"`
}

// Forecast is the projected value curve.
type Forecast struct {
	Current float64 `json:"current"`
	Points  []Point `json:"points"`
	Peak    Point   `json:"peak"`
	Trend   string  `json:"trend"`
}

// Trend labels.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// CurrentValue applies the multiplier tables to the overall score.
func CurrentValue(p Profile, overall float64) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	band := bandFor(p.Age)
	perf := math.Pow(math.Max(overall, 1)/60, performanceElasticity)
	v := BaseValue * perf *
		positionMultipliers[strings.ToLower(p.Position)] *
		leagueMultipliers[p.LeagueTier] *
		band.multiplier
	return roundValue(math.Max(MinValue, v)), nil
}

// Project forecasts months points ahead. The random walk is driven by a PCG
// seeded from seed, so equal inputs always give the same curve.
// Month 0 is the current value; the player ages as the months pass.
func Project(p Profile, overall float64, seed int64, months int) (Forecast, error) {
	current, err := CurrentValue(p, overall)
	if err != nil {
		return Forecast{}, err
	}
	if months < 0 {
		months = 0
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	points := make([]Point, 0, months+1)
	points = append(points, Point{Month: 0, Value: current})
	peak := points[0]

	v := current
	for m := 1; m <= months; m++ {
		age := min(p.Age+m/12, maxAge)
		drift := bandFor(age).drift
		shock := Volatility * rng.NormFloat64()
		v = math.Max(MinValue, v*(1+drift+shock))

		pt := Point{Month: m, Value: roundValue(v)}
		points = append(points, pt)
		if pt.Value > peak.Value {
			peak = pt
		}
	}

	return Forecast{
		Current: current,
		Points:  points,
		Peak:    peak,
		Trend:   trend(current, points[len(points)-1].Value),
	}, nil
}

func bandFor(age int) ageBand {
	for _, b := range ageBands {
		if age <= b.maxAge {
			return b
		}
	}
	return ageBands[len(ageBands)-1]
}

func trend(from, to float64) string {
	change := (to - from) / from
	switch {
	case change > 0.05:
		return TrendRising
	case change < -0.05:
		return TrendFalling
	default:
		return TrendStable
	}
}

// roundValue rounds to the nearest thousand.
func roundValue(v float64) float64 {
	return math.Round(v/1000) * 1000
}
