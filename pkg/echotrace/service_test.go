package echotrace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/index"
	"github.com/aryanmaurya/EchoTrace/internal/model"
)

// fakeCatalog is an in-memory Catalog for service tests.
type fakeCatalog struct {
	nextID       int
	songs        map[string]model.Song
	fingerprints map[string]*fingerprint.Fingerprint
	closed       bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		songs:        make(map[string]model.Song),
		fingerprints: make(map[string]*fingerprint.Fingerprint),
	}
}

func (f *fakeCatalog) RegisterSong(song model.Song) (string, error) {
	for id, s := range f.songs {
		if s.Title == song.Title && s.Artist == song.Artist {
			return id, nil
		}
	}
	f.nextID++
	id := fmt.Sprintf("song-%d", f.nextID)
	song.ID = id
	f.songs[id] = song
	return id, nil
}

func (f *fakeCatalog) StoreFingerprint(songID string, fp *fingerprint.Fingerprint) error {
	f.fingerprints[songID] = fp
	return nil
}

func (f *fakeCatalog) LoadCatalog() ([]index.ReferenceEntry, error) {
	var entries []index.ReferenceEntry
	for id, song := range f.songs {
		fp := f.fingerprints[id]
		if fp == nil {
			fp = &fingerprint.Fingerprint{
				Descriptor: fingerprint.Descriptor{Vector: make([]float64, fingerprint.DescriptorDim)},
			}
		}
		entries = append(entries, index.ReferenceEntry{Song: song, Fingerprint: fp})
	}
	return entries, nil
}

func (f *fakeCatalog) DeleteSongByID(songID string) error {
	delete(f.songs, songID)
	delete(f.fingerprints, songID)
	return nil
}

func (f *fakeCatalog) GetSongByID(songID string) (*model.Song, error) {
	song, ok := f.songs[songID]
	if !ok {
		return nil, fmt.Errorf("song %s not found", songID)
	}
	return &song, nil
}

func (f *fakeCatalog) ListSongs() ([]model.Song, error) {
	var out []model.Song
	for _, s := range f.songs {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeCatalog) Close() error {
	f.closed = true
	return nil
}

// failingCatalog injects errors into the persistence path.
type failingCatalog struct {
	*fakeCatalog
	storeErr  error
	deleteErr error
}

func (f *failingCatalog) StoreFingerprint(songID string, fp *fingerprint.Fingerprint) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	return f.fakeCatalog.StoreFingerprint(songID, fp)
}

func (f *failingCatalog) DeleteSongByID(songID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.fakeCatalog.DeleteSongByID(songID)
}

type captureLogger struct {
	warnings []string
}

func (c *captureLogger) Infof(string, ...any)  {}
func (c *captureLogger) Errorf(string, ...any) {}
func (c *captureLogger) Debugf(string, ...any) {}
func (c *captureLogger) Warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func newTestService(t *testing.T, catalog Catalog) Service {
	t.Helper()
	svc, err := NewService(WithCatalog(catalog), WithAutoRebuild(true))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

// toneClip synthesizes a distinct tone sequence per seed.
func toneClip(seed int, seconds int) []float64 {
	const rate = 11025
	segLen := rate / 2
	out := make([]float64, seconds*rate)
	for i := range out {
		seg := i / segLen
		freq := 300.0 + float64(seed)*700 + 35*float64(seg)
		out[i] = 0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func ingestPCM(t *testing.T, svc Service, catalog *fakeCatalog, title string, samples []float64) string {
	t.Helper()
	fp, err := svc.ExtractFingerprint(context.Background(), samples, 11025, 1)
	if err != nil {
		t.Fatalf("ExtractFingerprint failed: %v", err)
	}
	id, err := catalog.RegisterSong(model.Song{Title: title, Artist: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if err := catalog.StoreFingerprint(id, fp); err != nil {
		t.Fatal(err)
	}
	if err := svc.RebuildIndex(); err != nil {
		t.Fatalf("RebuildIndex failed: %v", err)
	}
	return id
}

func TestServiceRecognizeRoundtrip(t *testing.T) {
	catalog := newFakeCatalog()
	svc := newTestService(t, catalog)
	defer svc.Close()

	song := toneClip(0, 20)
	id := ingestPCM(t, svc, catalog, "roundtrip", song)

	// re-extract an excerpt and recognize it
	excerpt := song[:10*11025]
	fp, err := svc.ExtractFingerprint(context.Background(), excerpt, 11025, 1)
	if err != nil {
		t.Fatal(err)
	}
	result, err := svc.Recognize(context.Background(), fp)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Candidate == nil {
		t.Fatal("expected a match")
	}
	if result.Candidate.SongID != id {
		t.Errorf("matched %s, want %s", result.Candidate.SongID, id)
	}
}

func TestServiceRecognizeBeforeRebuild(t *testing.T) {
	svc := newTestService(t, newFakeCatalog())
	defer svc.Close()

	fp, err := svc.ExtractFingerprint(context.Background(), toneClip(0, 5), 11025, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Recognize(context.Background(), fp); !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("error = %v, want ErrIndexUnavailable", err)
	}
}

func TestServiceExtractErrors(t *testing.T) {
	svc := newTestService(t, newFakeCatalog())
	defer svc.Close()

	ctx := context.Background()
	if _, err := svc.ExtractFingerprint(ctx, make([]float64, 11025), 11025, 1); !errors.Is(err, ErrInsufficientAudio) {
		t.Errorf("short clip error = %v, want ErrInsufficientAudio", err)
	}
	if _, err := svc.ExtractFingerprint(ctx, toneClip(0, 5), 0, 1); !errors.Is(err, ErrMalformedAudio) {
		t.Errorf("bad rate error = %v, want ErrMalformedAudio", err)
	}
}

func TestServiceDeleteSong(t *testing.T) {
	catalog := newFakeCatalog()
	svc := newTestService(t, catalog)
	defer svc.Close()

	song := toneClip(0, 20)
	id := ingestPCM(t, svc, catalog, "doomed", song)

	if err := svc.DeleteSong(id); err != nil {
		t.Fatalf("DeleteSong failed: %v", err)
	}

	songs, err := svc.ListSongs()
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 0 {
		t.Errorf("catalog has %d songs after delete, want 0", len(songs))
	}

	// AutoRebuild republished without the song, so it can no longer match
	fp, err := svc.ExtractFingerprint(context.Background(), song[:10*11025], 11025, 1)
	if err != nil {
		t.Fatal(err)
	}
	result, err := svc.Recognize(context.Background(), fp)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Candidate != nil {
		t.Errorf("deleted song still matched: %+v", result.Candidate)
	}
}

func TestServiceListSongs(t *testing.T) {
	catalog := newFakeCatalog()
	svc := newTestService(t, catalog)
	defer svc.Close()

	ingestPCM(t, svc, catalog, "one", toneClip(0, 10))
	ingestPCM(t, svc, catalog, "two", toneClip(1, 10))

	songs, err := svc.ListSongs()
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 2 {
		t.Fatalf("listed %d songs, want 2", len(songs))
	}
	for _, s := range songs {
		if s.Artist != "tester" {
			t.Errorf("song %s artist = %q", s.ID, s.Artist)
		}
	}
}

func TestPersistFingerprintRollback(t *testing.T) {
	base := newFakeCatalog()
	catalog := &failingCatalog{fakeCatalog: base, storeErr: errors.New("disk full")}
	log := &captureLogger{}

	svc, err := NewService(WithCatalog(catalog), WithLogger(log))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	es := svc.(*echoService)

	fp := &fingerprint.Fingerprint{
		Descriptor: fingerprint.Descriptor{Vector: make([]float64, fingerprint.DescriptorDim)},
	}

	// store fails, rollback succeeds: the song must be gone and
	// nothing warned
	id, err := base.RegisterSong(model.Song{Title: "one", Artist: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := es.persistFingerprint(id, fp); err == nil {
		t.Fatal("expected persist error")
	}
	if _, ok := base.songs[id]; ok {
		t.Error("song not rolled back after failed fingerprint store")
	}
	if len(log.warnings) != 0 {
		t.Errorf("unexpected warnings for successful rollback: %v", log.warnings)
	}

	// store fails and the rollback fails too: the cleanup failure
	// must be logged, not swallowed
	id2, err := base.RegisterSong(model.Song{Title: "two", Artist: "a"})
	if err != nil {
		t.Fatal(err)
	}
	catalog.deleteErr = errors.New("catalog locked")
	if err := es.persistFingerprint(id2, fp); err == nil {
		t.Fatal("expected persist error")
	}
	if len(log.warnings) != 1 {
		t.Fatalf("rollback failure produced %d warnings, want 1", len(log.warnings))
	}
	if !strings.Contains(log.warnings[0], "catalog locked") {
		t.Errorf("warning does not carry the rollback error: %q", log.warnings[0])
	}
}

func TestServiceClose(t *testing.T) {
	catalog := newFakeCatalog()
	svc := newTestService(t, catalog)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !catalog.closed {
		t.Error("Close did not reach the catalog")
	}
}
