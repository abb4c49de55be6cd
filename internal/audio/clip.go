package audio

import "errors"

// Defaults for the processing pipeline.
const (
	// CaptureRate is the canonical capture rate delivered by recording clients.
	CaptureRate = 44100

	// ProcessingRate is the internal mono rate all analysis runs at.
	// Music content above ~5 kHz contributes little to peak landmarks,
	// so a lower rate keeps the FFT cheap without hurting recall.
	ProcessingRate = 11025

	// MinQuerySeconds is the shortest clip the extractor accepts.
	MinQuerySeconds = 3.0

	// SilencePeak is the peak amplitude below which a clip is treated
	// as silence regardless of duration.
	SilencePeak = 1e-4
)

var (
	// ErrInsufficientAudio is returned when a clip is too short or
	// entirely below the silence threshold.
	ErrInsufficientAudio = errors.New("audio: insufficient audio")

	// ErrMalformedAudio is returned when input cannot be decoded or
	// resampled.
	ErrMalformedAudio = errors.New("audio: malformed audio")
)

// Clip is an immutable mono PCM buffer at ProcessingRate, normalized to
// unit peak with DC offset removed. NoiseFloorDB estimates the ambient
// noise level (dBFS) from the quietest analysis frames.
type Clip struct {
	Samples      []float64
	SampleRate   int
	NoiseFloorDB float64
}

// DurationSeconds returns the clip length in seconds.
func (c *Clip) DurationSeconds() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// DurationMs returns the clip length in whole milliseconds.
func (c *Clip) DurationMs() int {
	return int(c.DurationSeconds() * 1000)
}
