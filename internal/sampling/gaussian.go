package sampling

import "math"

const (
	// NoIndex is returned when no acceptable index could be drawn.
	NoIndex = -1

	// MaxAttempts bounds every rejection loop in this file.
	MaxAttempts = 50
)

// GaussianIndex draws an integer from a normal distribution centred on mean
// with standard deviation (upper-lower)/variance, rounded to the nearest
// integer and truncated to [lower, upper] by rejection.
//
// A larger variance argument gives a narrower distribution. The mean is
// clamped into the bounds. After MaxAttempts rejected draws, or for
// invalid arguments (lower > upper, variance <= 0), NoIndex is returned.
func GaussianIndex(rng Rand, mean float64, lower, upper int, variance float64) int {
	if lower > upper || variance <= 0 || math.IsNaN(mean) {
		return NoIndex
	}
	mean = math.Max(float64(lower), math.Min(float64(upper), mean))
	scale := float64(upper-lower) / variance

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		pick := math.Round(standardNormal(rng)*scale + mean)
		if pick >= float64(lower) && pick <= float64(upper) {
			return int(pick)
		}
	}
	return NoIndex
}

// FreshGaussianIndex is GaussianIndex that skips indexes already in picked.
// It returns NoIndex once picked covers the whole range or MaxAttempts
// draws all hit picked indexes.
func FreshGaussianIndex(rng Rand, picked map[int]struct{}, mean float64, lower, upper int, variance float64) int {
	if lower > upper {
		return NoIndex
	}
	taken := 0
	for i := range picked {
		if i >= lower && i <= upper {
			taken++
		}
	}
	if taken >= upper-lower+1 {
		return NoIndex
	}

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		i := GaussianIndex(rng, mean, lower, upper, variance)
		if i == NoIndex {
			return NoIndex
		}
		if _, dup := picked[i]; !dup {
			return i
		}
	}
	return NoIndex
}

// standardNormal applies the Box-Muller transform to two uniforms in (0, 1).
func standardNormal(rng Rand) float64 {
	u, v := 0.0, 0.0
	for u == 0 {
		u = rng.Float64()
	}
	for v == 0 {
		v = rng.Float64()
	}
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}
