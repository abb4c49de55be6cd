package audio

import (
	"errors"
	"math"
	"testing"
)

func sineWave(freq float64, seconds float64, sampleRate int, amp float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestPreprocessBasic(t *testing.T) {
	raw := sineWave(440, 5, 44100, 0.5)

	clip, err := Preprocess(raw, 44100, 1)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	if clip.SampleRate != ProcessingRate {
		t.Errorf("sample rate = %d, want %d", clip.SampleRate, ProcessingRate)
	}

	wantLen := 5 * ProcessingRate
	if got := len(clip.Samples); got < wantLen-ProcessingRate/10 || got > wantLen+ProcessingRate/10 {
		t.Errorf("resampled length = %d, want about %d", got, wantLen)
	}

	// normalized to unit peak
	var peak float64
	for _, s := range clip.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak < 0.99 || peak > 1.0+1e-9 {
		t.Errorf("peak after normalization = %f, want ~1.0", peak)
	}
}

func TestPreprocessRemovesDC(t *testing.T) {
	raw := sineWave(440, 4, 22050, 0.3)
	for i := range raw {
		raw[i] += 0.2 // DC offset
	}

	clip, err := Preprocess(raw, 22050, 1)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	var sum float64
	for _, s := range clip.Samples {
		sum += s
	}
	mean := sum / float64(len(clip.Samples))
	if math.Abs(mean) > 0.01 {
		t.Errorf("mean after DC removal = %f, want ~0", mean)
	}
}

func TestPreprocessDownmixesStereo(t *testing.T) {
	mono := sineWave(440, 4, 11025, 0.5)
	stereo := make([]float64, 2*len(mono))
	for i, s := range mono {
		stereo[2*i] = s
		stereo[2*i+1] = s
	}

	clip, err := Preprocess(stereo, 11025, 2)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if got, want := len(clip.Samples), len(mono); got != want {
		t.Errorf("downmixed length = %d, want %d", got, want)
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name       string
		raw        []float64
		sampleRate int
		channels   int
		wantErr    error
	}{
		{"too short", sineWave(440, 1, 44100, 0.5), 44100, 1, ErrInsufficientAudio},
		{"silence", make([]float64, 5*44100), 44100, 1, ErrInsufficientAudio},
		{"zero sample rate", sineWave(440, 5, 44100, 0.5), 0, 1, ErrMalformedAudio},
		{"zero channels", sineWave(440, 5, 44100, 0.5), 44100, 0, ErrMalformedAudio},
		{"misaligned channels", make([]float64, 44101*5), 44100, 2, ErrMalformedAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.raw, tt.sampleRate, tt.channels)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Preprocess error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResampleIdentity(t *testing.T) {
	in := sineWave(440, 2, 11025, 0.5)
	out, err := Resample(in, 11025, 11025)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length changed: %d != %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d changed: %f != %f", i, out[i], in[i])
		}
	}
}

func TestResampleHalvesRate(t *testing.T) {
	in := sineWave(440, 2, 22050, 0.5)
	out, err := Resample(in, 22050, 11025)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	want := len(in) / 2
	if got := len(out); got < want-2 || got > want+2 {
		t.Errorf("resampled length = %d, want about %d", got, want)
	}
}

func TestResampleInvalidRates(t *testing.T) {
	if _, err := Resample([]float64{1, 2, 3}, 0, 11025); err == nil {
		t.Error("expected error for zero source rate")
	}
	if _, err := Resample([]float64{1, 2, 3}, 11025, -1); err == nil {
		t.Error("expected error for negative target rate")
	}
}

func TestNoiseFloorOrdering(t *testing.T) {
	quiet := sineWave(440, 4, ProcessingRate, 0.5)
	loudHalf := sineWave(440, 4, ProcessingRate, 0.5)
	// second half much louder: the quiet-quartile estimate should
	// still track the quiet part
	for i := len(loudHalf) / 2; i < len(loudHalf); i++ {
		loudHalf[i] *= 10
	}

	quietFloor := estimateNoiseFloor(quiet, ProcessingRate)
	mixedFloor := estimateNoiseFloor(loudHalf, ProcessingRate)

	if math.Abs(quietFloor-mixedFloor) > 6 {
		t.Errorf("noise floor should follow the quiet frames: quiet=%f mixed=%f", quietFloor, mixedFloor)
	}
}

func TestClipDuration(t *testing.T) {
	clip := &Clip{Samples: make([]float64, 2*ProcessingRate), SampleRate: ProcessingRate}
	if got := clip.DurationSeconds(); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("DurationSeconds = %f, want 2.0", got)
	}
	if got := clip.DurationMs(); got != 2000 {
		t.Errorf("DurationMs = %d, want 2000", got)
	}
}
