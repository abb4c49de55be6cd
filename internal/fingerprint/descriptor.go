package fingerprint

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Descriptor layout. Feature groups are aggregated to fixed-length
// summaries, concatenated, and zero-padded to DescriptorDim. Reserved
// slots keep the stored vector shape stable if a group grows.
const (
	DescriptorDim = 256

	NumMFCC       = 13
	NumMelFilters = 26
	NumChroma     = 12
	NumRhythm     = 8

	mfccMeanOff   = 0
	mfccVarOff    = mfccMeanOff + NumMFCC   // 13
	chromaMeanOff = mfccVarOff + NumMFCC    // 26
	chromaVarOff  = chromaMeanOff + NumChroma // 38
	rhythmOff     = chromaVarOff + NumChroma  // 50
	usedDim       = rhythmOff + NumRhythm     // 58
)

// Tempo search range for the envelope autocorrelation.
const (
	minTempoBPM = 60.0
	maxTempoBPM = 200.0
)

// Descriptor is a fixed-length summary of timbral, harmonic and
// rhythmic content, used for approximate similarity search. It is
// lossy by design: complementary to the exact landmark hashes, which
// are precise but brittle under heavy distortion. Each feature group
// carries a confidence in [0,1] reflecting local signal quality.
type Descriptor struct {
	Vector []float64 // length DescriptorDim

	MFCCConfidence   float64
	ChromaConfidence float64
	RhythmConfidence float64
}

// GroupConfidenceMean averages the per-group confidences.
func (d *Descriptor) GroupConfidenceMean() float64 {
	return (d.MFCCConfidence + d.ChromaConfidence + d.RhythmConfidence) / 3
}

// CosineSimilarity returns the cosine of the angle between two
// descriptor vectors, or 0 when either is a zero vector.
func CosineSimilarity(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// ExtractDescriptor computes the descriptor from a magnitude
// spectrogram (time-major, as produced by Spectrogram). An empty or
// degenerate spectrogram yields a zero vector with zero confidences.
// The context is checked once per frame, like the STFT.
func ExtractDescriptor(ctx context.Context, spectrogram [][]float64, sampleRate int) (Descriptor, error) {
	d := Descriptor{Vector: make([]float64, DescriptorDim)}
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 {
		return d, nil
	}

	melBank := melFilterBank(sampleRate, WindowSize, NumMelFilters)
	chromaMap := chromaBinMap(sampleRate, WindowSize, len(spectrogram[0]))

	nFrames := len(spectrogram)
	mfccFrames := make([][]float64, 0, nFrames)
	chromaFrames := make([][]float64, 0, nFrames)
	flatness := make([]float64, 0, nFrames)
	envelope := make([]float64, nFrames)

	for t, frame := range spectrogram {
		if err := ctx.Err(); err != nil {
			return Descriptor{Vector: make([]float64, DescriptorDim)}, err
		}
		mfccFrames = append(mfccFrames, mfccFrame(frame, melBank))
		chromaFrames = append(chromaFrames, chromaFrame(frame, chromaMap))
		flatness = append(flatness, spectralFlatness(frame))
		envelope[t] = floats.Sum(frame)
	}

	aggregate(d.Vector[mfccMeanOff:], d.Vector[mfccVarOff:], mfccFrames, NumMFCC)
	aggregate(d.Vector[chromaMeanOff:], d.Vector[chromaVarOff:], chromaFrames, NumChroma)

	tempo, beatStrength, acStats := rhythmFeatures(envelope, sampleRate)
	rhythm := d.Vector[rhythmOff : rhythmOff+NumRhythm]
	rhythm[0] = tempo / maxTempoBPM // normalized to [0,1]-ish
	rhythm[1] = beatStrength
	copy(rhythm[2:], acStats)

	d.MFCCConfidence = mfccConfidence(flatness)
	d.ChromaConfidence = chromaConfidence(d.Vector[chromaMeanOff : chromaMeanOff+NumChroma])
	d.RhythmConfidence = clamp01(beatStrength)

	return d, nil
}

// aggregate fills mean and variance summaries for a frame-major
// feature matrix with dim columns.
func aggregate(meanDst, varDst []float64, frames [][]float64, dim int) {
	if len(frames) == 0 {
		return
	}
	col := make([]float64, len(frames))
	for j := 0; j < dim; j++ {
		for i, f := range frames {
			col[i] = f[j]
		}
		m, v := stat.MeanVariance(col, nil)
		if math.IsNaN(v) {
			v = 0
		}
		meanDst[j] = m
		varDst[j] = v
	}
}

// ---------------- MFCC ----------------

// melFilterBank builds triangular filters on the mel scale. Each filter
// is a (startBin, weights) pair over the positive-frequency bins.
type melFilter struct {
	start   int
	weights []float64
}

func hzToMel(hz float64) float64  { return 2595.0 * math.Log10(1.0+hz/700.0) }
func melToHz(mel float64) float64 { return 700.0 * (math.Pow(10, mel/2595.0) - 1.0) }

func melFilterBank(sampleRate, windowSize, numFilters int) []melFilter {
	nBins := windowSize / 2
	nyquist := float64(sampleRate) / 2

	melLow := hzToMel(0)
	melHigh := hzToMel(nyquist)

	// numFilters+2 equally spaced mel points define the triangle edges
	points := make([]int, numFilters+2)
	for i := range points {
		mel := melLow + (melHigh-melLow)*float64(i)/float64(numFilters+1)
		bin := int(melToHz(mel) / nyquist * float64(nBins))
		if bin >= nBins {
			bin = nBins - 1
		}
		points[i] = bin
	}

	filters := make([]melFilter, numFilters)
	for i := 0; i < numFilters; i++ {
		lo, mid, hi := points[i], points[i+1], points[i+2]
		if hi <= lo {
			hi = lo + 1
		}
		if mid <= lo {
			mid = lo + 1
		}
		if mid > hi {
			mid = hi
		}
		weights := make([]float64, hi-lo)
		for b := lo; b < hi; b++ {
			switch {
			case b < mid:
				weights[b-lo] = float64(b-lo) / float64(mid-lo)
			case hi == mid:
				weights[b-lo] = 1.0
			default:
				weights[b-lo] = float64(hi-b) / float64(hi-mid)
			}
		}
		filters[i] = melFilter{start: lo, weights: weights}
	}
	return filters
}

// mfccFrame applies the mel bank to one magnitude frame, takes logs,
// and reduces to NumMFCC coefficients with a type-II DCT.
func mfccFrame(frame []float64, bank []melFilter) []float64 {
	logMel := make([]float64, len(bank))
	for i, f := range bank {
		var sum float64
		for k, w := range f.weights {
			bin := f.start + k
			if bin < len(frame) {
				sum += frame[bin] * w
			}
		}
		logMel[i] = math.Log(sum + 1e-10)
	}

	mfcc := make([]float64, NumMFCC)
	n := float64(len(logMel))
	for k := 0; k < NumMFCC; k++ {
		var sum float64
		for i, v := range logMel {
			sum += v * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/n)
		}
		mfcc[k] = sum
	}
	return mfcc
}

// mfccConfidence maps mean spectral flatness to [0,1]. Flatness near 1
// means noise-like content, which makes the timbral summary unreliable.
func mfccConfidence(flatness []float64) float64 {
	if len(flatness) == 0 {
		return 0
	}
	return clamp01(1.0 - stat.Mean(flatness, nil))
}

func spectralFlatness(frame []float64) float64 {
	if len(frame) == 0 {
		return 1
	}
	var logSum, sum float64
	for _, v := range frame {
		logSum += math.Log(v + 1e-10)
		sum += v + 1e-10
	}
	n := float64(len(frame))
	geoMean := math.Exp(logSum / n)
	ariMean := sum / n
	return geoMean / ariMean
}

// ---------------- Chroma ----------------

// chromaBinMap maps each FFT bin to a pitch class (0-11), or -1 for
// bins outside the musically useful 55 Hz - 4 kHz range.
func chromaBinMap(sampleRate, windowSize, nBins int) []int {
	m := make([]int, nBins)
	freqRes := float64(sampleRate) / float64(windowSize)
	for b := 0; b < nBins; b++ {
		freq := float64(b) * freqRes
		if freq < 55 || freq > 4000 {
			m[b] = -1
			continue
		}
		// semitones above A1 (55 Hz), folded to one octave
		semitone := 12.0 * math.Log2(freq/55.0)
		m[b] = int(math.Round(semitone)) % 12
	}
	return m
}

func chromaFrame(frame []float64, binMap []int) []float64 {
	chroma := make([]float64, NumChroma)
	for b, pc := range binMap {
		if pc < 0 || b >= len(frame) {
			continue
		}
		chroma[pc] += frame[b]
	}
	// normalize so the histogram describes distribution, not level
	if sum := floats.Sum(chroma); sum > 0 {
		floats.Scale(1/sum, chroma)
	}
	return chroma
}

// chromaConfidence measures how dominant the strongest pitch class is
// in the aggregated histogram. A flat histogram (no tonal center)
// scores near zero.
func chromaConfidence(meanChroma []float64) float64 {
	sum := floats.Sum(meanChroma)
	if sum <= 0 {
		return 0
	}
	max := floats.Max(meanChroma)
	uniform := sum / float64(len(meanChroma))
	if max <= uniform {
		return 0
	}
	// max == uniform -> 0, max == sum (single class) -> ~1
	return clamp01((max - uniform) / (sum - uniform))
}

// ---------------- Rhythm ----------------

// rhythmFeatures estimates tempo from the autocorrelation of the
// half-wave rectified energy envelope difference (onset strength).
// Returns the tempo in BPM, a beat-strength score in [0,1], and six
// coarse autocorrelation samples across the tempo range.
func rhythmFeatures(envelope []float64, sampleRate int) (tempo, beatStrength float64, acStats []float64) {
	acStats = make([]float64, NumRhythm-2)
	if len(envelope) < 4 {
		return 0, 0, acStats
	}

	// onset strength: positive envelope differences
	onsets := make([]float64, len(envelope)-1)
	for i := 1; i < len(envelope); i++ {
		if d := envelope[i] - envelope[i-1]; d > 0 {
			onsets[i-1] = d
		}
	}
	if m := stat.Mean(onsets, nil); m > 0 {
		floats.AddConst(-m, onsets)
	}

	frameRate := float64(sampleRate) / float64(HopSize)
	minLag := int(frameRate * 60.0 / maxTempoBPM)
	maxLag := int(frameRate * 60.0 / minTempoBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(onsets) {
		maxLag = len(onsets) - 1
	}
	if maxLag <= minLag {
		return 0, 0, acStats
	}

	ac := autocorrelate(onsets, maxLag)

	bestLag, bestVal := minLag, ac[minLag]
	var sum float64
	for lag := minLag; lag <= maxLag; lag++ {
		sum += math.Abs(ac[lag])
		if ac[lag] > bestVal {
			bestVal = ac[lag]
			bestLag = lag
		}
	}

	tempo = 60.0 * frameRate / float64(bestLag)

	mean := sum / float64(maxLag-minLag+1)
	if mean > 0 && bestVal > 0 {
		// contrast of the dominant lag over the mean, squashed to [0,1]
		beatStrength = clamp01((bestVal/mean - 1) / 4)
	}

	// coarse shape of the autocorrelation across the tempo range
	for i := range acStats {
		lag := minLag + (maxLag-minLag)*i/len(acStats)
		if ac[0] > 0 {
			acStats[i] = ac[lag] / ac[0]
		}
	}
	return tempo, beatStrength, acStats
}

func autocorrelate(x []float64, maxLag int) []float64 {
	ac := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < len(x); i++ {
			sum += x[i] * x[i+lag]
		}
		ac[lag] = sum
	}
	return ac
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
