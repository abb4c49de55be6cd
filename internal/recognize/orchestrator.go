package recognize

import (
	"context"
	"fmt"

	"github.com/aryanmaurya/EchoTrace/internal/audio"
	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/index"
	"github.com/aryanmaurya/EchoTrace/internal/match"
)

// State is one stage of a recognition request. Each request walks the
// states in order exactly once; there are no internal retries, since
// the pipeline is deterministic and retrying identical input yields
// identical output.
type State int

const (
	StateIdle State = iota
	StatePreprocessing
	StateExtracting
	StateMatching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreprocessing:
		return "preprocessing"
	case StateExtracting:
		return "extracting"
	case StateMatching:
		return "matching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Logger is the narrow logging surface the orchestrator needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Orchestrator wires the pipeline per request: preprocess, extract,
// match, decide. It is an explicit, passed-in instance rather than a
// process-wide singleton, so independent pipelines (parallel ingestion
// and querying) can coexist without shared-state hazards. It holds no
// per-request state; every method is safe for concurrent use.
type Orchestrator struct {
	index *index.Index
	cfg   match.Config
	log   Logger
}

// New creates an Orchestrator reading from the given index.
func New(ix *index.Index, cfg match.Config, log Logger) *Orchestrator {
	return &Orchestrator{index: ix, cfg: cfg, log: log}
}

// ExtractFingerprint runs preprocessing and extraction on raw PCM.
// Fails with audio.ErrInsufficientAudio or audio.ErrMalformedAudio.
func (o *Orchestrator) ExtractFingerprint(ctx context.Context, raw []float64, sampleRate, channels int) (*fingerprint.Fingerprint, error) {
	state := StatePreprocessing
	o.log.Debugf("request state: %s", state)

	clip, err := audio.Preprocess(raw, sampleRate, channels)
	if err != nil {
		o.log.Debugf("request state: %s (%v)", StateFailed, err)
		return nil, err
	}

	state = StateExtracting
	o.log.Debugf("request state: %s", state)

	fp, err := fingerprint.Extract(ctx, clip)
	if err != nil {
		o.log.Debugf("request state: %s (%v)", StateFailed, err)
		return nil, err
	}

	o.log.Debugf("extracted %d landmarks, confidence %.2f", len(fp.Landmarks), fp.OverallConfidence)
	return fp, nil
}

// Recognize resolves a query fingerprint against the current published
// index version. The snapshot handle is held for the whole call, so a
// concurrent publish never produces mixed-version reads. Returns
// index.ErrIndexUnavailable before the first publish; a nil candidate
// in the result is a valid "no match".
func (o *Orchestrator) Recognize(ctx context.Context, fp *fingerprint.Fingerprint) (*match.Result, error) {
	o.log.Debugf("request state: %s", StateMatching)

	snap, err := o.index.Acquire()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := match.Match(fp, snap, o.cfg)

	if result.Candidate != nil {
		o.log.Debugf("request state: %s (song=%s conf=%.2f)", StateDone,
			result.Candidate.SongID, result.Candidate.CombinedConfidence)
	} else {
		o.log.Debugf("request state: %s (no match)", StateDone)
	}
	return result, nil
}

// RecognizePCM runs the full pipeline in one call.
func (o *Orchestrator) RecognizePCM(ctx context.Context, raw []float64, sampleRate, channels int) (*match.Result, error) {
	fp, err := o.ExtractFingerprint(ctx, raw, sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("extracting fingerprint: %w", err)
	}
	return o.Recognize(ctx, fp)
}
