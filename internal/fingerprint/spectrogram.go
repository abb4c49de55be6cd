package fingerprint

import (
	"context"
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// STFT framing parameters. HopSize gives 75% overlap for good time
// resolution on short query clips.
const (
	WindowSize = 1024
	HopSize    = 256
)

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// MagnitudeSpectrum converts a complex spectrum into a magnitude
// spectrum over the positive frequencies only.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes a short-time Fourier transform and returns a time-major
// magnitude spectrogram: spectrogram[frameIdx][freqBin]. The context is
// checked once per frame; a cancelled context abandons the transform at
// the next frame boundary.
func STFT(ctx context.Context, samples []float64, windowSize, hopSize int, window []float64) ([][]float64, error) {
	if len(window) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if len(samples) < windowSize {
		return nil, errors.New("input shorter than window size")
	}

	spectrogram := make([][]float64, 0, len(samples)/hopSize)
	frame := make([]float64, windowSize)

	for start := 0; start+windowSize <= len(samples); start += hopSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		copy(frame, samples[start:start+windowSize])
		for i := 0; i < windowSize; i++ {
			frame[i] *= window[i]
		}
		spectrogram = append(spectrogram, MagnitudeSpectrum(fft.FFTReal(frame)))
	}
	return spectrogram, nil
}

// Spectrogram runs the STFT with package defaults and a Hamming window.
func Spectrogram(ctx context.Context, samples []float64) ([][]float64, error) {
	return STFT(ctx, samples, WindowSize, HopSize, Hamming(WindowSize))
}
