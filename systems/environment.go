package systems

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Environment is a smooth scalar field over the world that modulates
// metabolic cost. It drifts slowly with time so regions of the map become
// marginally cheaper or more expensive to live in, which gives spatial
// structure a reason to emerge without any hard terrain.
type Environment struct {
	noise     opensimplex.Noise
	spatial   float64 // world units per noise unit, inverse
	temporal  float64 // drift speed
	amplitude float64 // max deviation of the cost factor from 1
	time      float64
}

// NewEnvironment builds a field from a seed. Amplitude is the maximum
// relative swing of the cost factor; zero disables the field entirely.
func NewEnvironment(seed int64, spatialScale, driftSpeed, amplitude float64) *Environment {
	return &Environment{
		noise:     opensimplex.New(seed),
		spatial:   spatialScale,
		temporal:  driftSpeed,
		amplitude: amplitude,
	}
}

// Advance moves the field forward by dt seconds.
func (e *Environment) Advance(dt float64) {
	e.time += dt * e.temporal
}

// CostFactor returns the metabolic cost multiplier at a position. The value
// stays within [1-amplitude, 1+amplitude].
func (e *Environment) CostFactor(x, y float64) float64 {
	if e == nil || e.amplitude == 0 {
		return 1.0
	}
	n := e.noise.Eval3(x*e.spatial, y*e.spatial, e.time)
	return 1.0 + n*e.amplitude
}
