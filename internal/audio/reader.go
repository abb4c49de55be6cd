package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV file into float64 samples in [-1, 1].
// Multi-channel files are returned interleaved; pair with Preprocess
// for downmixing and resampling. Returns ErrMalformedAudio (wrapped)
// for anything the decoder rejects.
func ReadWAV(path string) (samples []float64, sampleRate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("%w: not a valid WAV file: %s", ErrMalformedAudio, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: decoding %s: %v", ErrMalformedAudio, path, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: empty PCM data in %s", ErrMalformedAudio, path)
	}

	samples = intBufferToFloat(buf, int(decoder.BitDepth))
	return samples, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

// intBufferToFloat scales integer PCM to [-1, 1] by the full-scale
// value of the source bit depth.
func intBufferToFloat(buf *goaudio.IntBuffer, bitDepth int) []float64 {
	if bitDepth == 0 {
		bitDepth = 16
	}
	fullScale := float64(int64(1) << (bitDepth - 1))

	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float64(v) / fullScale
	}
	return out
}

// ReadWAVClip reads a WAV file and runs the full preprocessing chain.
func ReadWAVClip(path string) (*Clip, error) {
	samples, sampleRate, channels, err := ReadWAV(path)
	if err != nil {
		return nil, err
	}
	return Preprocess(samples, sampleRate, channels)
}
