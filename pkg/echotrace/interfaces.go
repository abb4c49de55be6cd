package echotrace

import (
	"context"

	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/index"
	"github.com/aryanmaurya/EchoTrace/internal/match"
	"github.com/aryanmaurya/EchoTrace/internal/model"
)

// Service is the public surface of the recognition engine: catalog
// management plus the two core operations (fingerprint extraction and
// recognition).
type Service interface {
	// AddSong ingests an audio file into the catalog and returns the
	// song ID.
	AddSong(ctx context.Context, audioPath string, meta SongMeta) (string, error)

	// AddSongFromYouTube downloads the audio for a YouTube URL and
	// ingests it.
	AddSongFromYouTube(ctx context.Context, youtubeURL string, meta SongMeta) (string, error)

	// MatchFile recognizes a recorded clip. Returns (nil, nil) when
	// the search ran and found nothing above threshold.
	MatchFile(ctx context.Context, audioPath string) (*MatchResult, error)

	// ExtractFingerprint runs preprocessing and extraction on raw PCM.
	ExtractFingerprint(ctx context.Context, raw []float64, sampleRate, channels int) (*fingerprint.Fingerprint, error)

	// Recognize resolves an already-extracted fingerprint against the
	// current index version.
	Recognize(ctx context.Context, fp *fingerprint.Fingerprint) (*match.Result, error)

	// RebuildIndex builds a fresh snapshot from the catalog and
	// publishes it atomically.
	RebuildIndex() error

	ListSongs() ([]Song, error)
	DeleteSong(songID string) error
	Close() error
}

// Catalog is the persistence surface the service needs. The sqlite
// implementation in internal/storage is the default; tests substitute
// an in-memory one.
type Catalog interface {
	RegisterSong(song model.Song) (string, error)
	StoreFingerprint(songID string, fp *fingerprint.Fingerprint) error
	LoadCatalog() ([]index.ReferenceEntry, error)
	DeleteSongByID(songID string) error
	GetSongByID(songID string) (*model.Song, error)
	ListSongs() ([]model.Song, error)
	Close() error
}

// Logger is the narrow logging surface used across the service.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// SongMeta carries caller-supplied metadata at ingestion time.
type SongMeta struct {
	Title     string
	Artist    string
	Language  string
	Genre     string
	YouTubeID string
}
