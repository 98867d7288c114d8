package performance

import (
	"math"

	"github.com/FairForge/scoutline/internal/motion"
)

// Scores holds the 0-100 dashboard scores.
type Scores struct {
	Technical float64 `json:"technical"`
	Physical  float64 `json:"physical"`
	Tactical  float64 `json:"tactical"`
	Mental    float64 `json:"mental"`
	Overall   float64 `json:"overall"`
}

// PhysicalStats are the raw movement numbers behind the physical score.
type PhysicalStats struct {
	DistanceCovered float64 `json:"distance_covered"`
	AverageSpeed    float64 `json:"average_speed"`
	TopSpeed        float64 `json:"top_speed"`
	Sprints         int     `json:"sprints"`
}

// Report is the full evaluation of one series.
type Report struct {
	Scores   Scores        `json:"scores"`
	Physical PhysicalStats `json:"physical"`
}

// Evaluate scores a series. An empty series scores zero on every axis.
func Evaluate(samples []motion.Sample) Report {
	if len(samples) == 0 {
		return Report{}
	}

	speeds := make([]float64, len(samples))
	areas := make([]float64, len(samples))
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))

	var stats PhysicalStats
	for i, s := range samples {
		speeds[i] = s.Speed
		areas[i] = s.BoundingBox.Width * s.BoundingBox.Height
		xs[i], ys[i] = s.BoundingBox.Center()

		stats.TopSpeed = math.Max(stats.TopSpeed, s.Speed)
		if s.Speed >= SprintThreshold {
			stats.Sprints++
		}
	}
	stats.AverageSpeed = mean(speeds)
	stats.DistanceCovered = motion.Distance(samples)

	duration := samples[len(samples)-1].TimestampSeconds - samples[0].TimestampSeconds
	var distanceRate float64
	if duration > 0 {
		distanceRate = stats.DistanceCovered / duration
	}

	physicalRatio := PhysicalAverageWeight*stats.AverageSpeed/BaselineAverageSpeed +
		PhysicalTopWeight*stats.TopSpeed/BaselineTopSpeed +
		PhysicalDistanceWeight*distanceRate/BaselineDistanceRate

	spread := (stddev(xs) + stddev(ys)) / 2

	var scores Scores
	scores.Physical = scale(physicalRatio)
	scores.Tactical = scale(spread / BaselineSpread)
	scores.Technical = scale((1 - variation(areas)) / BaselineBoxStability)
	scores.Mental = scale((1 - variation(speeds)) / BaselineSpeedControl)
	scores.Overall = round1(TechnicalWeight*scores.Technical +
		PhysicalWeight*scores.Physical +
		TacticalWeight*scores.Tactical +
		MentalWeight*scores.Mental)

	stats.DistanceCovered = round1(stats.DistanceCovered)
	stats.AverageSpeed = round1(stats.AverageSpeed)
	stats.TopSpeed = round1(stats.TopSpeed)

	return Report{Scores: scores, Physical: stats}
}

// scale maps a baseline ratio to a clamped score.
func scale(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	return round1(math.Max(MinScore, math.Min(MaxScore, RatingBaseline*ratio)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func stddev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	var sq float64
	for _, x := range v {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(v)))
}

// variation is the coefficient of variation, capped at 1.
func variation(v []float64) float64 {
	m := mean(v)
	if m == 0 {
		return 0
	}
	return math.Min(1, stddev(v)/math.Abs(m))
}
