package audio

import (
	"fmt"
	"math"
	"sort"
)

// Preprocess turns raw interleaved PCM at an arbitrary sample rate and
// channel count into a Clip: mono, ProcessingRate, DC-removed, peak
// normalized, with a noise-floor estimate attached.
//
// It is a pure transform; the input slice is never modified. Clips
// shorter than MinQuerySeconds or entirely below SilencePeak fail with
// ErrInsufficientAudio. Invalid rates or channel counts fail with
// ErrMalformedAudio.
func Preprocess(raw []float64, sampleRate, channels int) (*Clip, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrMalformedAudio, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: invalid channel count %d", ErrMalformedAudio, channels)
	}
	if len(raw)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples not divisible by %d channels", ErrMalformedAudio, len(raw), channels)
	}

	mono := downmix(raw, channels)

	if float64(len(mono))/float64(sampleRate) < MinQuerySeconds {
		return nil, fmt.Errorf("%w: clip shorter than %.0fs", ErrInsufficientAudio, MinQuerySeconds)
	}

	samples, err := Resample(mono, sampleRate, ProcessingRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAudio, err)
	}

	removeDC(samples)

	peak := peakAmplitude(samples)
	if peak < SilencePeak {
		return nil, fmt.Errorf("%w: peak amplitude %.2e below silence threshold", ErrInsufficientAudio, peak)
	}
	scale := 1.0 / peak
	for i := range samples {
		samples[i] *= scale
	}

	return &Clip{
		Samples:      samples,
		SampleRate:   ProcessingRate,
		NoiseFloorDB: estimateNoiseFloor(samples, ProcessingRate),
	}, nil
}

// downmix averages interleaved channels into a fresh mono buffer.
func downmix(raw []float64, channels int) []float64 {
	if channels == 1 {
		out := make([]float64, len(raw))
		copy(out, raw)
		return out
	}
	n := len(raw) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += raw[i*channels+ch]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// Resample converts input from srcRate to dstRate. Downsampling first
// applies a low-pass filter at the target Nyquist to avoid aliasing,
// then linearly interpolates between neighboring samples. Upsampling
// interpolates directly.
func Resample(input []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive (src=%d dst=%d)", srcRate, dstRate)
	}
	if srcRate == dstRate {
		out := make([]float64, len(input))
		copy(out, input)
		return out, nil
	}

	src := input
	if dstRate < srcRate {
		src = lowPass(input, float64(dstRate)/2, float64(srcRate))
	}

	ratio := float64(srcRate) / float64(dstRate)
	n := int(float64(len(src)) / ratio)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		if j+1 >= len(src) {
			out[i] = src[len(src)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = src[j]*(1-frac) + src[j+1]*frac
	}
	return out, nil
}

// lowPass is a first-order low-pass filter attenuating content above
// cutoffHz. Cheap and sufficient as an anti-aliasing pre-filter ahead
// of interpolation.
func lowPass(input []float64, cutoffHz, sampleRate float64) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / sampleRate
	alpha := dt / (rc + dt)

	out := make([]float64, len(input))
	var prev float64
	for i, x := range input {
		if i == 0 {
			out[i] = x * alpha
		} else {
			out[i] = alpha*x + (1-alpha)*prev
		}
		prev = out[i]
	}
	return out
}

// removeDC subtracts the buffer mean in place.
func removeDC(samples []float64) {
	if len(samples) == 0 {
		return
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	for i := range samples {
		samples[i] -= mean
	}
}

func peakAmplitude(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// estimateNoiseFloor computes frame RMS energies over ~50ms windows and
// takes the median of the quietest quartile as the noise floor, in dBFS.
// Using the quiet end of the distribution keeps the estimate stable in
// the presence of loud foreground content.
func estimateNoiseFloor(samples []float64, sampleRate int) float64 {
	frameLen := sampleRate / 20
	if frameLen < 1 {
		frameLen = 1
	}

	var energies []float64
	for start := 0; start+frameLen <= len(samples); start += frameLen {
		var sum float64
		for _, s := range samples[start : start+frameLen] {
			sum += s * s
		}
		energies = append(energies, math.Sqrt(sum/float64(frameLen)))
	}
	if len(energies) == 0 {
		return -96.0
	}

	sort.Float64s(energies)
	quiet := energies[:maxInt(1, len(energies)/4)]
	median := quiet[len(quiet)/2]

	const eps = 1e-10
	return 20 * math.Log10(median+eps)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
