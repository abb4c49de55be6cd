package match

import (
	"sort"

	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/index"
)

// Config holds the matcher's tunable decision parameters. Thresholds
// are calibration targets, not contracts; DefaultConfig carries values
// that behave well on clean and moderately noisy clips.
type Config struct {
	// TopK is how many ANN neighbors the descriptor pass retrieves.
	TopK int

	// BinWidthMs is the vote histogram bin width. Wider bins tolerate
	// more timing jitter at the cost of alignment precision.
	BinWidthMs int

	// AbsoluteThreshold is the minimum combined confidence to accept
	// the top candidate at all.
	AbsoluteThreshold float64

	// MinMargin is the minimum lead over the runner-up; within it the
	// result is ambiguous (song vs. cover) unless exact evidence
	// breaks the tie.
	MinMargin float64

	// ConfirmationBonus is added when a song appears in both the
	// landmark and the descriptor pass.
	ConfirmationBonus float64

	// LandmarkWeight and DescriptorWeight blend the two evidence
	// sources. The descriptor term is additionally scaled by the
	// query's own descriptor confidence.
	LandmarkWeight   float64
	DescriptorWeight float64

	// FullScoreVoteRatio is the fraction of query landmarks that must
	// align for the vote term to saturate.
	FullScoreVoteRatio float64
}

// DefaultConfig returns the standard music-matching parameters.
func DefaultConfig() Config {
	return Config{
		TopK:               10,
		BinWidthMs:         100,
		AbsoluteThreshold:  0.20,
		MinMargin:          0.05,
		ConfirmationBonus:  0.10,
		LandmarkWeight:     0.7,
		DescriptorWeight:   0.3,
		FullScoreVoteRatio: 0.20,
	}
}

// Candidate is one ranked match hypothesis.
type Candidate struct {
	SongID               string
	LandmarkVotes        int
	AlignmentOffsetMs    int64 // reference anchor minus query anchor
	DescriptorSimilarity float64
	CombinedConfidence   float64
}

// Result is the matcher's decision. Candidate is nil for "no match" —
// a valid negative result, not an error.
type Result struct {
	Candidate                  *Candidate
	QueryFingerprintConfidence float64
}

// Match runs both retrieval passes against one snapshot and fuses the
// evidence into a single accept/reject decision. Pure: no state is
// shared across calls and the snapshot is read-only.
func Match(fp *fingerprint.Fingerprint, snap *index.Snapshot, cfg Config) *Result {
	result := &Result{QueryFingerprintConfidence: fp.OverallConfidence}

	votes := voteLandmarks(fp.Landmarks, snap, cfg.BinWidthMs)
	neighbors := snap.QueryNearest(fp.Descriptor.Vector, cfg.TopK)

	candidates := fuse(fp, votes, neighbors, cfg)
	if len(candidates) == 0 {
		return result
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CombinedConfidence != candidates[j].CombinedConfidence {
			return candidates[i].CombinedConfidence > candidates[j].CombinedConfidence
		}
		return candidates[i].LandmarkVotes > candidates[j].LandmarkVotes
	})

	result.Candidate = decide(candidates, cfg)
	return result
}

// songVote is the aggregated landmark evidence for one song.
type songVote struct {
	votes    int   // height of the tallest offset-histogram bin
	offsetMs int64 // mean offset within that bin
}

// voteLandmarks builds a per-song histogram of (reference anchor −
// query anchor) offsets and keeps each song's sharpest bin. A clip that
// is really an excerpt of a song piles most of its votes into one bin;
// accidental hash collisions scatter uniformly.
func voteLandmarks(landmarks []fingerprint.Landmark, snap *index.Snapshot, binWidthMs int) map[string]songVote {
	type bin struct {
		count     int
		offsetSum int64
	}
	histograms := make(map[string]map[int64]*bin)

	for _, lm := range landmarks {
		for _, posting := range snap.LookupLandmark(lm.Hash) {
			offset := int64(posting.AnchorTimeMs) - int64(lm.AnchorTimeMs)
			// floor division so negative offsets bin uniformly; plain
			// integer division would fold (-binWidth, binWidth) into
			// one double-width bin around zero
			key := offset / int64(binWidthMs)
			if offset < 0 && offset%int64(binWidthMs) != 0 {
				key--
			}

			h := histograms[posting.SongID]
			if h == nil {
				h = make(map[int64]*bin)
				histograms[posting.SongID] = h
			}
			b := h[key]
			if b == nil {
				b = &bin{}
				h[key] = b
			}
			b.count++
			b.offsetSum += offset
		}
	}

	out := make(map[string]songVote, len(histograms))
	for songID, h := range histograms {
		var best *bin
		for _, b := range h {
			if best == nil || b.count > best.count {
				best = b
			}
		}
		out[songID] = songVote{
			votes:    best.count,
			offsetMs: best.offsetSum / int64(best.count),
		}
	}
	return out
}

// fuse unions the two candidate sets and scores each song. The vote
// term is normalized against the query's landmark budget; the
// descriptor term is de-weighted when the query's own descriptor
// confidence is low. Songs confirmed by both passes get a bonus.
func fuse(fp *fingerprint.Fingerprint, votes map[string]songVote, neighbors []index.Neighbor, cfg Config) []Candidate {
	similarity := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		similarity[n.SongID] = n.Similarity
	}

	songIDs := make(map[string]bool, len(votes)+len(similarity))
	for id := range votes {
		songIDs[id] = true
	}
	for id := range similarity {
		songIDs[id] = true
	}

	voteBudget := float64(len(fp.Landmarks)) * cfg.FullScoreVoteRatio
	if voteBudget < 1 {
		voteBudget = 1
	}
	descWeight := cfg.DescriptorWeight * fp.Descriptor.GroupConfidenceMean()

	candidates := make([]Candidate, 0, len(songIDs))
	for id := range songIDs {
		v := votes[id]
		sim := similarity[id]

		voteScore := float64(v.votes) / voteBudget
		if voteScore > 1 {
			voteScore = 1
		}
		descScore := sim
		if descScore < 0 {
			descScore = 0
		}

		combined := 0.0
		if total := cfg.LandmarkWeight + descWeight; total > 0 {
			combined = (cfg.LandmarkWeight*voteScore + descWeight*descScore) / total
		}
		if v.votes > 0 && sim > 0 {
			combined += cfg.ConfirmationBonus
		}
		if combined > 1 {
			combined = 1
		}

		candidates = append(candidates, Candidate{
			SongID:               id,
			LandmarkVotes:        v.votes,
			AlignmentOffsetMs:    v.offsetMs,
			DescriptorSimilarity: sim,
			CombinedConfidence:   combined,
		})
	}
	return candidates
}

// decide applies the acceptance rules to confidence-sorted candidates:
// the winner must clear the absolute threshold and lead the runner-up
// by the margin. Inside the margin, exact evidence (landmark votes)
// outranks approximate evidence.
func decide(candidates []Candidate, cfg Config) *Candidate {
	best := candidates[0]

	if len(candidates) > 1 {
		runnerUp := candidates[1]
		if best.CombinedConfidence-runnerUp.CombinedConfidence < cfg.MinMargin {
			switch {
			case best.LandmarkVotes > runnerUp.LandmarkVotes:
				// keep best
			case runnerUp.LandmarkVotes > best.LandmarkVotes:
				best = runnerUp
			default:
				return nil // genuinely ambiguous
			}
		}
	}

	if best.CombinedConfidence < cfg.AbsoluteThreshold {
		return nil
	}
	out := best
	return &out
}
