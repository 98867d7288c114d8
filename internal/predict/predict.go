// Package predict is the rule-based stand-in for the player model: weighted
// averages of the dashboard scores plus canned recommendations.
package predict

import (
	"math"
	"sort"

	"github.com/FairForge/scoutline/internal/performance"
)

// Prediction is the model output shown next to the dashboard.
type Prediction struct {
	PotentialRating float64   `json:"potential_rating"`
	InjuryRisk      float64   `json:"injury_risk"`
	Confidence      float64   `json:"confidence"`
	Recommendations []string  `json:"recommendations"`
	TrainingPlan    []Session `json:"training_plan"`
}

// Session is one weekly training block.
type Session struct {
	Day      string `json:"day"`
	Focus    string `json:"focus"`
	Drill    string `json:"drill"`
	Minutes  int    `json:"minutes"`
	Priority int    `json:"priority"`
}

// Potential weights lean towards the axes that improve with age.
var potentialWeights = []struct {
	axis   string
	weight float64
}{
	{"technical", 0.35},
	{"tactical", 0.30},
	{"mental", 0.20},
	{"physical", 0.15},
}

const (
	growthHeadroom = 0.25 // share of the gap to 100 a player is expected to close
	baseInjuryRisk = 0.05
	maxInjuryRisk  = 0.60
	weakThreshold  = 50.0
	strongScore    = 75.0
)

var recommendationsByAxis = map[string]string{
	"technical": "Increase ball-mastery repetitions under pressure to steady first touch.",
	"physical":  "Add interval running to lift repeat-sprint capacity.",
	"tactical":  "Review positional clips to widen coverage between the lines.",
	"mental":    "Work on pacing decisions to keep intensity consistent across spells.",
}

var drillsByAxis = map[string][]string{
	"technical": {"Rondo 5v2", "Wall passing circuit"},
	"physical":  {"30-15 intermittent runs", "Hill sprints"},
	"tactical":  {"Shadow play shape work", "Small-sided positional game"},
	"mental":    {"Decision tempo drills", "Match-scenario visualisation"},
}

var weekDays = []string{"Monday", "Tuesday", "Thursday", "Friday"}

// Predict derives a prediction from scores.
func Predict(s performance.Scores) Prediction {
	axes := map[string]float64{
		"technical": s.Technical,
		"physical":  s.Physical,
		"tactical":  s.Tactical,
		"mental":    s.Mental,
	}

	var weighted float64
	for _, pw := range potentialWeights {
		weighted += pw.weight * axes[pw.axis]
	}
	potential := weighted + growthHeadroom*(100-weighted)

	// Low physical output and erratic pacing both raise risk.
	risk := baseInjuryRisk +
		0.3*(1-s.Physical/100) +
		0.2*(1-s.Mental/100)
	risk = math.Min(maxInjuryRisk, math.Max(0, risk))

	return Prediction{
		PotentialRating: round1(math.Min(100, potential)),
		InjuryRisk:      math.Round(risk*100) / 100,
		Confidence:      confidence(axes),
		Recommendations: recommend(axes),
		TrainingPlan:    plan(axes),
	}
}

// confidence drops as the axes disagree with each other.
func confidence(axes map[string]float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range axes {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return math.Round((1-(hi-lo)/200)*100) / 100
}

func recommend(axes map[string]float64) []string {
	var out []string
	for _, axis := range ranked(axes) {
		if axes[axis] < weakThreshold {
			out = append(out, recommendationsByAxis[axis])
		}
	}
	if len(out) == 0 {
		weakest := ranked(axes)[0]
		if axes[weakest] >= strongScore {
			return []string{"Maintain current load; all areas are above target."}
		}
		out = append(out, recommendationsByAxis[weakest])
	}
	return out
}

// plan schedules the two weakest axes across the week.
func plan(axes map[string]float64) []Session {
	order := ranked(axes)
	focus := order[:2]

	sessions := make([]Session, 0, len(weekDays))
	for i, day := range weekDays {
		axis := focus[i%2]
		drills := drillsByAxis[axis]
		minutes := 45
		if i%2 == 0 {
			minutes = 60
		}
		sessions = append(sessions, Session{
			Day:      day,
			Focus:    axis,
			Drill:    drills[(i/2)%len(drills)],
			Minutes:  minutes,
			Priority: i%2 + 1,
		})
	}
	return sessions
}

// ranked orders axes from weakest to strongest, ties by name.
func ranked(axes map[string]float64) []string {
	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if axes[names[i]] != axes[names[j]] {
			return axes[names[i]] < axes[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
