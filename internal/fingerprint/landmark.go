package fingerprint

import "math"

// Landmark pairing tunables.
const (
	// Bits allocated to each frequency index in the packed hash.
	// 9 bits cover the 512 positive-frequency bins of a 1024 FFT.
	MaxFreqBits = 9

	// Bits allocated to the pair time delta in milliseconds.
	MaxDeltaBits = 14

	// FanOut limits how many target peaks each anchor is paired with.
	FanOut = 6

	// Target zone bounds on the pair time delta (ms). Very short deltas
	// are usually the same onset; very long ones are uninformative.
	MinDeltaMs = 10
	MaxDeltaMs = 3000

	// TargetZoneFreqBins bounds the frequency distance between anchor
	// and target. Pairs across the whole spectrum are noise-fragile.
	TargetZoneFreqBins = 128
)

// Landmark is one combinatorial hash anchored to an absolute time in
// the source clip. The hash packs (anchorFreq, targetFreq, deltaMs) so
// it depends only on relative peak geometry, never on the clip's
// absolute start time.
type Landmark struct {
	Hash         uint32
	AnchorTimeMs uint32
}

// packAddress packs anchor/target frequency indices and the pair time
// delta into a 32-bit key. Returns ok==false when the pair falls
// outside the target zone or the representable bit ranges.
//
// bit layout: [ anchorFreq (9) | targetFreq (9) | deltaMs (14) ]
func packAddress(anchor, target Peak) (uint32, bool) {
	anchorFreq := uint32(anchor.FreqIdx)
	targetFreq := uint32(target.FreqIdx)

	deltaMs := uint32(math.Round((target.Time - anchor.Time) * 1000.0))
	if deltaMs < MinDeltaMs || deltaMs > MaxDeltaMs {
		return 0, false
	}

	if absInt(target.FreqIdx-anchor.FreqIdx) > TargetZoneFreqBins {
		return 0, false
	}

	maxFreqMask := uint32((1 << MaxFreqBits) - 1)
	maxDeltaMask := uint32((1 << MaxDeltaBits) - 1)
	if anchorFreq > maxFreqMask || targetFreq > maxFreqMask || deltaMs > maxDeltaMask {
		return 0, false
	}

	address := (anchorFreq << (MaxDeltaBits + MaxFreqBits)) |
		(targetFreq << MaxDeltaBits) |
		(deltaMs & maxDeltaMask)
	return address, true
}

// ExtractLandmarks pairs each peak with up to FanOut subsequent peaks
// inside the target zone and emits one landmark per valid pair. The
// input must be sorted by time (ExtractPeaks guarantees this).
// Duplicate hashes at different anchor times are kept; repetition
// across time is meaningful evidence during voting.
func ExtractLandmarks(peaks []Peak) []Landmark {
	landmarks := make([]Landmark, 0, len(peaks)*FanOut/2)

	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < FanOut; j++ {
			address, ok := packAddress(anchor, peaks[j])
			if !ok {
				// peaks are time-sorted, so once the delta exceeds the
				// zone no later peak can pair either
				if deltaMs := (peaks[j].Time - anchor.Time) * 1000; deltaMs > MaxDeltaMs {
					break
				}
				continue
			}
			landmarks = append(landmarks, Landmark{
				Hash:         address,
				AnchorTimeMs: uint32(math.Round(anchor.Time * 1000)),
			})
			paired++
		}
	}

	return landmarks
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
