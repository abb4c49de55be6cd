package storage

import (
	"path/filepath"
	"testing"

	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/model"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testFingerprint(nLandmarks int) *fingerprint.Fingerprint {
	landmarks := make([]fingerprint.Landmark, nLandmarks)
	for i := range landmarks {
		landmarks[i] = fingerprint.Landmark{
			Hash:         uint32(1000 + i),
			AnchorTimeMs: uint32(i * 250),
		}
	}
	vector := make([]float64, fingerprint.DescriptorDim)
	for i := 0; i < 10; i++ {
		vector[i] = float64(i) * 0.1
	}
	return &fingerprint.Fingerprint{
		Landmarks: landmarks,
		Descriptor: fingerprint.Descriptor{
			Vector:           vector,
			MFCCConfidence:   0.8,
			ChromaConfidence: 0.6,
			RhythmConfidence: 0.4,
		},
		SourceDurationMs: 30000,
	}
}

func TestRegisterSong(t *testing.T) {
	c := newTestClient(t)

	id, err := c.RegisterSong(model.Song{Title: "Song One", Artist: "Artist A"})
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	if id == "" {
		t.Fatal("empty song ID")
	}

	song, err := c.GetSongByID(id)
	if err != nil {
		t.Fatalf("GetSongByID failed: %v", err)
	}
	if song.Title != "Song One" || song.Artist != "Artist A" {
		t.Errorf("stored song = %+v", song)
	}
}

func TestRegisterSongDedupes(t *testing.T) {
	c := newTestClient(t)

	id1, err := c.RegisterSong(model.Song{Title: "Same", Artist: "Artist"})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := c.RegisterSong(model.Song{Title: "Same", Artist: "Artist", Genre: "rock"})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("duplicate registration produced new ID: %s vs %s", id1, id2)
	}

	// the second call backfilled the missing genre
	song, err := c.GetSongByID(id1)
	if err != nil {
		t.Fatal(err)
	}
	if song.Genre != "rock" {
		t.Errorf("genre = %q, want backfilled %q", song.Genre, "rock")
	}

	songs, err := c.ListSongs()
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 1 {
		t.Errorf("catalog has %d songs, want 1", len(songs))
	}
}

func TestStoreAndLoadCatalog(t *testing.T) {
	c := newTestClient(t)

	id, err := c.RegisterSong(model.Song{Title: "Song", Artist: "Artist", DurationMs: 30000})
	if err != nil {
		t.Fatal(err)
	}
	fp := testFingerprint(600) // forces multiple insert batches
	if err := c.StoreFingerprint(id, fp); err != nil {
		t.Fatalf("StoreFingerprint failed: %v", err)
	}

	entries, err := c.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("loaded %d entries, want 1", len(entries))
	}

	got := entries[0]
	if got.Song.ID != id {
		t.Errorf("entry song ID = %s, want %s", got.Song.ID, id)
	}
	if len(got.Fingerprint.Landmarks) != len(fp.Landmarks) {
		t.Fatalf("loaded %d landmarks, want %d", len(got.Fingerprint.Landmarks), len(fp.Landmarks))
	}

	// landmark roundtrip (order is not guaranteed)
	want := make(map[uint32]uint32, len(fp.Landmarks))
	for _, lm := range fp.Landmarks {
		want[lm.Hash] = lm.AnchorTimeMs
	}
	for _, lm := range got.Fingerprint.Landmarks {
		if want[lm.Hash] != lm.AnchorTimeMs {
			t.Fatalf("landmark %d anchor = %d, want %d", lm.Hash, lm.AnchorTimeMs, want[lm.Hash])
		}
	}

	// descriptor roundtrip
	d := got.Fingerprint.Descriptor
	if len(d.Vector) != fingerprint.DescriptorDim {
		t.Fatalf("descriptor length = %d, want %d", len(d.Vector), fingerprint.DescriptorDim)
	}
	for i := range d.Vector {
		if d.Vector[i] != fp.Descriptor.Vector[i] {
			t.Fatalf("vector[%d] = %f, want %f", i, d.Vector[i], fp.Descriptor.Vector[i])
		}
	}
	if d.MFCCConfidence != 0.8 || d.ChromaConfidence != 0.6 || d.RhythmConfidence != 0.4 {
		t.Errorf("confidences = %f/%f/%f", d.MFCCConfidence, d.ChromaConfidence, d.RhythmConfidence)
	}
}

func TestLoadCatalogMissingDescriptor(t *testing.T) {
	c := newTestClient(t)

	id, err := c.RegisterSong(model.Song{Title: "Bare", Artist: "Artist"})
	if err != nil {
		t.Fatal(err)
	}
	// landmarks without a descriptor row
	if err := c.DB.Create(&landmarkRow{Hash: 7, SongID: id, AnchorTimeMs: 100}).Error; err != nil {
		t.Fatal(err)
	}

	entries, err := c.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("loaded %d entries, want 1", len(entries))
	}
	v := entries[0].Fingerprint.Descriptor.Vector
	if len(v) != fingerprint.DescriptorDim {
		t.Fatalf("fallback vector length = %d, want %d", len(v), fingerprint.DescriptorDim)
	}
	for i := range v {
		if v[i] != 0 {
			t.Fatalf("fallback vector[%d] = %f, want 0", i, v[i])
		}
	}
}

func TestDeleteSongCascades(t *testing.T) {
	c := newTestClient(t)

	id, err := c.RegisterSong(model.Song{Title: "Doomed", Artist: "Artist"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.StoreFingerprint(id, testFingerprint(50)); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteSongByID(id); err != nil {
		t.Fatalf("DeleteSongByID failed: %v", err)
	}

	if _, err := c.GetSongByID(id); err == nil {
		t.Error("deleted song still readable")
	}

	var landmarkCount, descriptorCount int64
	c.DB.Model(&landmarkRow{}).Where("song_id = ?", id).Count(&landmarkCount)
	c.DB.Model(&descriptorRow{}).Where("song_id = ?", id).Count(&descriptorCount)
	if landmarkCount != 0 {
		t.Errorf("%d landmark rows survived deletion", landmarkCount)
	}
	if descriptorCount != 0 {
		t.Errorf("%d descriptor rows survived deletion", descriptorCount)
	}

	entries, err := c.LoadCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("catalog has %d entries after deletion, want 0", len(entries))
	}
}

func TestListSongsEmpty(t *testing.T) {
	c := newTestClient(t)
	songs, err := c.ListSongs()
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	if len(songs) != 0 {
		t.Errorf("empty catalog listed %d songs", len(songs))
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.RegisterSong(model.Song{Title: "x"}); err == nil {
		t.Error("nil client RegisterSong should fail")
	}
	if err := c.StoreFingerprint("id", testFingerprint(1)); err == nil {
		t.Error("nil client StoreFingerprint should fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("nil client Close = %v, want nil", err)
	}
}
