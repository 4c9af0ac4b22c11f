package audio

import "math"

// fullScale is the magnitude of the largest int16 sample.
const fullScale = 32768.0

// RMS returns the root-mean-square amplitude of int16 little-endian PCM.
// Returns 0 for empty input. A trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Level maps the RMS energy of pcm onto [0, 1] relative to full scale,
// multiplied by gain and clamped. A gain of 1 reports raw energy; speech
// rarely exceeds a quarter of full scale, so callers driving visual feedback
// typically use a gain of 3-4.
func Level(pcm []byte, gain float64) float64 {
	if gain <= 0 {
		gain = 1
	}
	v := RMS(pcm) / fullScale * gain
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
