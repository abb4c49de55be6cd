package index

import (
	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/model"
)

// ReferenceEntry is one catalog recording handed to the builder:
// its fingerprint plus metadata. Immutable after creation.
type ReferenceEntry struct {
	Song        model.Song
	Fingerprint *fingerprint.Fingerprint
}

// Builder accumulates reference entries and produces an immutable
// Snapshot. Builds run entirely off the hot path; nothing published is
// ever touched. Exclude marks songs to leave out of the next build,
// which is how deletion reaches the read path.
type Builder struct {
	entries  []ReferenceEntry
	excluded map[string]bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{excluded: make(map[string]bool)}
}

// Add queues one reference entry for the next build.
func (b *Builder) Add(entry ReferenceEntry) {
	b.entries = append(b.entries, entry)
}

// Exclude removes a song from the next build.
func (b *Builder) Exclude(songID string) {
	b.excluded[songID] = true
}

// Len returns the number of queued entries, excluded ones included.
func (b *Builder) Len() int { return len(b.entries) }

// Build produces a fully-populated immutable snapshot with the given
// version. The Builder can keep accumulating afterwards; the snapshot
// shares nothing mutable with it.
func (b *Builder) Build(version uint64) *Snapshot {
	landmarks := make(map[uint32][]model.Posting)
	songs := make(map[string]model.Song)

	var annIDs []string
	var annVectors [][]float64

	for _, e := range b.entries {
		if b.excluded[e.Song.ID] {
			continue
		}
		if _, dup := songs[e.Song.ID]; dup {
			continue
		}
		songs[e.Song.ID] = e.Song

		for _, lm := range e.Fingerprint.Landmarks {
			landmarks[lm.Hash] = append(landmarks[lm.Hash], model.Posting{
				SongID:       e.Song.ID,
				AnchorTimeMs: lm.AnchorTimeMs,
			})
		}

		annIDs = append(annIDs, e.Song.ID)
		annVectors = append(annVectors, e.Fingerprint.Descriptor.Vector)
	}

	return &Snapshot{
		version:   version,
		landmarks: landmarks,
		ann:       buildANN(annIDs, annVectors),
		songs:     songs,
	}
}
