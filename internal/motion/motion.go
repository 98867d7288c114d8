// Package motion generates the synthetic player-tracking series used as the
// "detected" motion of a clip. Every value is a closed-form function of the
// seed and the sample index, so identical seeds always give identical series.
package motion

import "math"

const (
	// DefaultSampleCount is the series length used by the analysis pipeline.
	DefaultSampleCount = 15
	// TimeStep is the spacing between samples, in seconds.
	TimeStep = 1.2
)

// BoundingBox is a detection rectangle in frame pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Sample is one point of the series.
type Sample struct {
	TimestampSeconds float64     `json:"timestamp"`
	BoundingBox      BoundingBox `json:"bbox"`
	Speed            float64     `json:"speed"`
}

// At computes the sample at index i for seed.
func At(seed int64, i int) Sample {
	offset := float64(seed % 100)
	fi := float64(i)
	j := fi + offset

	return Sample{
		TimestampSeconds: fi * TimeStep,
		BoundingBox: BoundingBox{
			X:      150 + 100*math.Sin(j/3) + 50*math.Cos(j/5),
			Y:      200 + 80*math.Cos(j/4) + 30*math.Sin(j/7),
			Width:  40 + 10*math.Sin(fi),
			Height: 80 + 20*math.Cos(fi),
		},
		Speed: 5 + 3*math.Sin(j/2),
	}
}

// Generate returns k samples for seed. k <= 0 yields an empty slice.
func Generate(seed int64, k int) []Sample {
	if k <= 0 {
		return []Sample{}
	}
	out := make([]Sample, k)
	for i := range out {
		out[i] = At(seed, i)
	}
	return out
}

// Distance returns the path length traced by the box centers.
func Distance(samples []Sample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		x0, y0 := samples[i-1].BoundingBox.Center()
		x1, y1 := samples[i].BoundingBox.Center()
		total += math.Hypot(x1-x0, y1-y0)
	}
	return total
}
