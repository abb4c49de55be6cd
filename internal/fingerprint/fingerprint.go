package fingerprint

import (
	"context"
	"math"

	"github.com/aryanmaurya/EchoTrace/internal/audio"
)

// Confidence weighting. Landmark density carries more weight than the
// descriptor groups because it tracks how much exact evidence the clip
// can contribute during voting.
const (
	// expected landmark yield for clean music; density is clipped here
	expectedLandmarksPerSec = 30.0

	landmarkConfWeight   = 0.6
	descriptorConfWeight = 0.4

	// dB margin above the noise floor at which the SNR factor saturates
	snrSaturationDB = 40.0
)

// Fingerprint bundles everything the matcher needs from one clip: the
// exact landmark hashes, the approximate descriptor, and an overall
// confidence estimate. A fingerprint is always generated from exactly
// one contiguous clip.
type Fingerprint struct {
	Landmarks         []Landmark
	Descriptor        Descriptor
	SourceDurationMs  int
	OverallConfidence float64
}

// Extract runs the full extraction pipeline on a preprocessed clip:
// spectrogram, peak constellation, landmark pairing, and descriptor
// computation. Deterministic: identical clips yield identical
// fingerprints. The context is honored at frame boundaries.
func Extract(ctx context.Context, clip *audio.Clip) (*Fingerprint, error) {
	spec, err := Spectrogram(ctx, clip.Samples)
	if err != nil {
		return nil, err
	}

	peaks := ExtractPeaks(spec, clip.SampleRate)
	landmarks := ExtractLandmarks(peaks)

	descriptor, err := ExtractDescriptor(ctx, spec, clip.SampleRate)
	if err != nil {
		return nil, err
	}

	fp := &Fingerprint{
		Landmarks:        landmarks,
		Descriptor:       descriptor,
		SourceDurationMs: clip.DurationMs(),
	}
	fp.OverallConfidence = overallConfidence(fp, clip)
	return fp, nil
}

// overallConfidence blends clipped landmark density with the
// descriptor group confidences, then scales by how far the signal sits
// above the estimated noise floor. Monotone non-decreasing in signal
// energy above the floor, non-increasing in noise level.
func overallConfidence(fp *Fingerprint, clip *audio.Clip) float64 {
	seconds := clip.DurationSeconds()
	if seconds <= 0 {
		return 0
	}

	density := float64(len(fp.Landmarks)) / seconds
	landmarkConf := clamp01(density / expectedLandmarksPerSec)

	conf := landmarkConfWeight*landmarkConf +
		descriptorConfWeight*fp.Descriptor.GroupConfidenceMean()

	// half the score is earned by content, half by signal quality;
	// content with zero dynamics (steady tones) still scores, but a
	// noisy floor always pulls the result down
	return conf * (0.5 + 0.5*snrFactor(clip))
}

// snrFactor maps the margin between signal RMS and the noise floor to
// [0,1], saturating at snrSaturationDB.
func snrFactor(clip *audio.Clip) float64 {
	var sum float64
	for _, s := range clip.Samples {
		sum += s * s
	}
	if len(clip.Samples) == 0 {
		return 0
	}
	rms := math.Sqrt(sum / float64(len(clip.Samples)))
	rmsDB := 20 * math.Log10(rms+1e-10)

	return clamp01((rmsDB - clip.NoiseFloorDB) / snrSaturationDB)
}
