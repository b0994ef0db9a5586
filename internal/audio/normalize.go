package audio

// PadToMinimum returns samples extended with trailing zeros to at least minSamples.
// Buffers already at or above the floor are returned as-is without copying.
func PadToMinimum(samples []float32, minSamples int) []float32 {
	if len(samples) >= minSamples {
		return samples
	}
	out := make([]float32, minSamples)
	copy(out, samples)
	return out
}

// Duration returns the length of samples in seconds at rate.
func Duration(samples []float32, rate int) float64 {
	if rate <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(rate)
}
