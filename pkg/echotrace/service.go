package echotrace

import (
	"context"
	"fmt"

	"github.com/aryanmaurya/EchoTrace/internal/audio"
	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/index"
	"github.com/aryanmaurya/EchoTrace/internal/match"
	"github.com/aryanmaurya/EchoTrace/internal/model"
	"github.com/aryanmaurya/EchoTrace/internal/recognize"
	"github.com/aryanmaurya/EchoTrace/internal/storage"
	"github.com/aryanmaurya/EchoTrace/pkg/logger"
)

// Error kinds surfaced by the service, re-exported so callers don't
// import internal packages for errors.Is checks.
var (
	ErrInsufficientAudio = audio.ErrInsufficientAudio
	ErrMalformedAudio    = audio.ErrMalformedAudio
	ErrIndexUnavailable  = index.ErrIndexUnavailable
)

// echoService is the default Service implementation.
type echoService struct {
	catalog Catalog
	ix      *index.Index
	orch    *recognize.Orchestrator
	log     Logger
	config  *Config
}

// NewService wires catalog storage, the reference index, and the
// recognition orchestrator into one Service.
func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		var err error
		catalog, err = storage.NewClient(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create catalog storage: %w", err)
		}
	}

	ix := index.New()
	return &echoService{
		catalog: catalog,
		ix:      ix,
		orch:    recognize.New(ix, cfg.Matcher, cfg.Logger),
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// AddSong ingests one audio file: convert to mono WAV, preprocess,
// extract the fingerprint, persist, and (when AutoRebuild is on)
// republish the index.
func (s *echoService) AddSong(ctx context.Context, audioPath string, meta SongMeta) (string, error) {
	s.log.Infof("Processing song: %s by %s", meta.Title, meta.Artist)

	wavPath, err := audio.ConvertToMonoWAV(ctx, audioPath, s.config.TempDir, audio.ConvertConfig{})
	if err != nil {
		return "", fmt.Errorf("audio conversion failed: %w", err)
	}

	clip, err := audio.ReadWAVClip(wavPath)
	if err != nil {
		return "", fmt.Errorf("reading converted WAV: %w", err)
	}

	fp, err := fingerprint.Extract(ctx, clip)
	if err != nil {
		return "", fmt.Errorf("fingerprint extraction failed: %w", err)
	}
	s.log.Infof("Extracted %d landmarks, overall confidence %.2f", len(fp.Landmarks), fp.OverallConfidence)

	songID, err := s.catalog.RegisterSong(model.Song{
		Title:      meta.Title,
		Artist:     meta.Artist,
		Language:   meta.Language,
		Genre:      meta.Genre,
		YouTubeID:  meta.YouTubeID,
		DurationMs: clip.DurationMs(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to register song: %w", err)
	}

	if err := s.persistFingerprint(songID, fp); err != nil {
		return "", err
	}

	if s.config.AutoRebuild {
		if err := s.RebuildIndex(); err != nil {
			return "", fmt.Errorf("index rebuild after ingest failed: %w", err)
		}
	}

	s.log.Infof("Successfully added song ID=%s", songID)
	return songID, nil
}

// persistFingerprint stores the fingerprint, rolling back the catalog
// entry on failure so a song never exists without its landmarks.
func (s *echoService) persistFingerprint(songID string, fp *fingerprint.Fingerprint) error {
	if err := s.catalog.StoreFingerprint(songID, fp); err != nil {
		if derr := s.catalog.DeleteSongByID(songID); derr != nil {
			s.log.Warnf("Rollback of song %s after failed fingerprint store also failed: %v", songID, derr)
		}
		return fmt.Errorf("failed to store fingerprint: %w", err)
	}
	return nil
}

// AddSongFromYouTube downloads a video's audio track and ingests it.
func (s *echoService) AddSongFromYouTube(ctx context.Context, youtubeURL string, meta SongMeta) (string, error) {
	audioPath, videoID, err := downloadYouTubeAudio(ctx, youtubeURL, s.config.TempDir)
	if err != nil {
		return "", fmt.Errorf("youtube download failed: %w", err)
	}
	if meta.YouTubeID == "" {
		meta.YouTubeID = videoID
	}
	return s.AddSong(ctx, audioPath, meta)
}

// MatchFile recognizes a clip from disk. Non-WAV inputs go through
// ffmpeg first. Returns (nil, nil) for a negative result.
func (s *echoService) MatchFile(ctx context.Context, audioPath string) (*MatchResult, error) {
	s.log.Infof("Matching audio: %s", audioPath)

	wavPath, err := audio.ConvertToMonoWAV(ctx, audioPath, s.config.TempDir, audio.ConvertConfig{})
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}

	clip, err := audio.ReadWAVClip(wavPath)
	if err != nil {
		return nil, err
	}

	fp, err := fingerprint.Extract(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("fingerprint extraction failed: %w", err)
	}

	result, err := s.Recognize(ctx, fp)
	if err != nil {
		return nil, err
	}
	if result.Candidate == nil {
		s.log.Infof("No match above threshold (query confidence %.2f)", result.QueryFingerprintConfidence)
		return nil, nil
	}

	song, err := s.catalog.GetSongByID(result.Candidate.SongID)
	if err != nil {
		return nil, fmt.Errorf("fetching match metadata: %w", err)
	}

	return &MatchResult{
		SongID:               song.ID,
		Title:                song.Title,
		Artist:               song.Artist,
		YouTubeID:            song.YouTubeID,
		LandmarkVotes:        result.Candidate.LandmarkVotes,
		AlignmentOffsetMs:    result.Candidate.AlignmentOffsetMs,
		DescriptorSimilarity: result.Candidate.DescriptorSimilarity,
		Confidence:           result.Candidate.CombinedConfidence,
		QueryConfidence:      result.QueryFingerprintConfidence,
	}, nil
}

func (s *echoService) ExtractFingerprint(ctx context.Context, raw []float64, sampleRate, channels int) (*fingerprint.Fingerprint, error) {
	return s.orch.ExtractFingerprint(ctx, raw, sampleRate, channels)
}

func (s *echoService) Recognize(ctx context.Context, fp *fingerprint.Fingerprint) (*match.Result, error) {
	return s.orch.Recognize(ctx, fp)
}

// RebuildIndex loads the catalog, builds a fresh snapshot off the hot
// path, and publishes it with one atomic swap. In-flight queries keep
// reading the previous version until they finish.
func (s *echoService) RebuildIndex() error {
	entries, err := s.catalog.LoadCatalog()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	builder := index.NewBuilder()
	for _, e := range entries {
		builder.Add(e)
	}

	snap := builder.Build(s.ix.NextVersion())
	s.ix.Publish(snap)
	s.log.Infof("Published index version %d: %d songs, %d landmark hashes",
		snap.Version(), snap.SongCount(), snap.LandmarkCount())
	return nil
}

func (s *echoService) ListSongs() ([]Song, error) {
	songs, err := s.catalog.ListSongs()
	if err != nil {
		return nil, err
	}
	out := make([]Song, len(songs))
	for i, song := range songs {
		out[i] = Song{
			ID:         song.ID,
			Title:      song.Title,
			Artist:     song.Artist,
			Language:   song.Language,
			Genre:      song.Genre,
			YouTubeID:  song.YouTubeID,
			DurationMs: song.DurationMs,
		}
	}
	return out, nil
}

// DeleteSong removes a song from the catalog and republishes the index
// without it (deletion is exclusion at publish time, never in-place
// mutation of a served snapshot).
func (s *echoService) DeleteSong(songID string) error {
	if err := s.catalog.DeleteSongByID(songID); err != nil {
		return err
	}
	if s.config.AutoRebuild {
		return s.RebuildIndex()
	}
	return nil
}

func (s *echoService) Close() error {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Close()
}
