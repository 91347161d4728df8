package vtsmotion

import "math"

// noiseField is a cheap coherent 1-D noise source: a sum of sines at
// incommensurate frequencies. Adjacent samples are continuous, which
// is what separates organic drift from per-frame jitter.
type noiseField struct {
	seed float64
}

func newNoiseField(seed float64) noiseField {
	return noiseField{seed: seed}
}

// at returns a value in [-1, 1] for time t in seconds.
func (n noiseField) at(t float64) float64 {
	v := 0.55*math.Sin(t+n.seed) +
		0.30*math.Sin(2.17*t+1.3*n.seed) +
		0.15*math.Sin(4.71*t+2.9*n.seed)
	return clamp(v, -1, 1)
}
