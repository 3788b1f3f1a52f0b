package testsupport

import "math"

// Sine synthesizes a mono sine tone as float32 samples in [-1, 1]. Handy for
// exercising speech detection without real recordings.
func Sine(freqHz float64, amplitude float64, seconds float64, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*freqHz*t))
	}
	return samples
}

// Silence synthesizes a run of zero samples.
func Silence(seconds float64, sampleRate int) []float32 {
	return make([]float32, int(seconds*float64(sampleRate)))
}

// Concat joins sample runs into one buffer.
func Concat(runs ...[]float32) []float32 {
	total := 0
	for _, run := range runs {
		total += len(run)
	}
	out := make([]float32, 0, total)
	for _, run := range runs {
		out = append(out, run...)
	}
	return out
}
