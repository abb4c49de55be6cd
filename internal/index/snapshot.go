package index

import (
	"errors"
	"sync/atomic"

	"github.com/aryanmaurya/EchoTrace/internal/model"
)

// ErrIndexUnavailable is returned when no snapshot has been published
// yet. Distinct from a negative match result: it means the search could
// not run at all.
var ErrIndexUnavailable = errors.New("index: no published version")

// Snapshot is one immutable, fully-built version of the reference
// index: the inverted landmark table plus the ANN structure over
// descriptors. Snapshots are never mutated after Publish; deletion is
// modeled as exclusion at the next build.
type Snapshot struct {
	version   uint64
	landmarks map[uint32][]model.Posting
	ann       *annIndex
	songs     map[string]model.Song

	refs    atomic.Int64
	retired atomic.Bool
}

// Version returns the snapshot's monotonically increasing version.
func (s *Snapshot) Version() uint64 { return s.version }

// LookupLandmark returns the postings for a landmark hash. The returned
// slice is shared and must not be modified.
func (s *Snapshot) LookupLandmark(hash uint32) []model.Posting {
	return s.landmarks[hash]
}

// QueryNearest returns the top-k reference songs by cosine similarity
// between descriptor vectors.
func (s *Snapshot) QueryNearest(descriptor []float64, k int) []Neighbor {
	return s.ann.query(descriptor, k)
}

// Song returns catalog metadata for a song in this snapshot.
func (s *Snapshot) Song(songID string) (model.Song, bool) {
	song, ok := s.songs[songID]
	return song, ok
}

// SongCount returns the number of songs indexed in this snapshot.
func (s *Snapshot) SongCount() int { return len(s.songs) }

// LandmarkCount returns the number of distinct landmark hashes.
func (s *Snapshot) LandmarkCount() int { return len(s.landmarks) }

// Release drops a reader's reference. When a retired snapshot loses its
// last reader its tables are dropped so the GC can reclaim them while
// long-lived code may still hold the (now empty) struct.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) == 0 && s.retired.Load() {
		s.free()
	}
}

func (s *Snapshot) free() {
	s.landmarks = nil
	s.ann = nil
	s.songs = nil
}

// Index owns the current snapshot pointer. Readers acquire a handle for
// the duration of one query; writers build a snapshot independently and
// publish it with a single atomic swap. No lock is ever held during
// matching.
type Index struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// New returns an Index with no published version.
func New() *Index {
	return &Index{}
}

// Acquire takes a read reference on the current snapshot. The caller
// must Release it when the query finishes. Returns ErrIndexUnavailable
// before the first Publish.
func (ix *Index) Acquire() (*Snapshot, error) {
	for {
		s := ix.current.Load()
		if s == nil {
			return nil, ErrIndexUnavailable
		}
		s.refs.Add(1)
		// the pointer may have been swapped between Load and Add;
		// re-check so a reader never starts against a retired version
		if ix.current.Load() == s {
			return s, nil
		}
		s.Release()
	}
}

// Publish atomically swaps in a new snapshot. The old version keeps
// serving in-flight readers until the last one releases it.
func (ix *Index) Publish(s *Snapshot) {
	old := ix.current.Swap(s)
	if old != nil {
		old.retired.Store(true)
		if old.refs.Load() == 0 {
			old.free()
		}
	}
}

// NextVersion reserves the next snapshot version number.
func (ix *Index) NextVersion() uint64 {
	return ix.version.Add(1)
}

// CurrentVersion returns the published version, or 0 if none.
func (ix *Index) CurrentVersion() uint64 {
	if s := ix.current.Load(); s != nil {
		return s.version
	}
	return 0
}
