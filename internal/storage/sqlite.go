package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aryanmaurya/EchoTrace/internal/fingerprint"
	"github.com/aryanmaurya/EchoTrace/internal/index"
	"github.com/aryanmaurya/EchoTrace/internal/model"
)

const DefaultDBFile = "echotrace.sqlite3"

const errClientNil = "storage client is nil"

// Client is the durable catalog: song metadata, landmark rows, and
// descriptor blobs. The in-memory reference index is built from this
// catalog off the hot path; queries never touch the database.
type Client struct {
	DB *gorm.DB
	db *sql.DB
}

type songRow struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Title      string `gorm:"uniqueIndex:idx_song_unique,priority:1"`
	Artist     string `gorm:"uniqueIndex:idx_song_unique,priority:2"`
	Language   string
	Genre      string
	YouTubeID  string `gorm:"index:idx_youtube_id"`
	DurationMs int
	CreatedAt  time.Time
}

func (songRow) TableName() string { return "songs" }

type landmarkRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash"`
	SongID       string `gorm:"type:varchar(36);index:idx_song"`
	AnchorTimeMs uint32
}

func (landmarkRow) TableName() string { return "landmarks" }

type descriptorRow struct {
	SongID     string `gorm:"primaryKey;type:varchar(36)"`
	Vector     []byte // little-endian float64s
	MFCCConf   float64
	ChromaConf float64
	RhythmConf float64
}

func (descriptorRow) TableName() string { return "descriptors" }

// NewClient opens (and migrates) the catalog at dbPath.
func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&songRow{}, &landmarkRow{}, &descriptorRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Client{DB: db, db: sqlDB}, nil
}

func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterSong creates the catalog entry and returns its ID. A song
// with the same title and artist is reused rather than duplicated;
// metadata corrections fill in previously empty fields.
func (c *Client) RegisterSong(song model.Song) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errClientNil)
	}

	var existing songRow
	err := c.DB.Where("title = ? AND artist = ?", song.Title, song.Artist).First(&existing).Error
	if err == nil {
		updates := map[string]any{}
		if existing.YouTubeID == "" && song.YouTubeID != "" {
			updates["you_tube_id"] = song.YouTubeID
		}
		if existing.Language == "" && song.Language != "" {
			updates["language"] = song.Language
		}
		if existing.Genre == "" && song.Genre != "" {
			updates["genre"] = song.Genre
		}
		if len(updates) > 0 {
			if err := c.DB.Model(&existing).Updates(updates).Error; err != nil {
				return "", fmt.Errorf("updating song metadata: %w", err)
			}
		}
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing song: %w", err)
	}

	row := songRow{
		ID:         uuid.NewString(),
		Title:      song.Title,
		Artist:     song.Artist,
		Language:   song.Language,
		Genre:      song.Genre,
		YouTubeID:  song.YouTubeID,
		DurationMs: song.DurationMs,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return "", fmt.Errorf("creating song: %w", err)
	}
	return row.ID, nil
}

// StoreFingerprint persists a reference fingerprint: landmark rows in
// batches plus one descriptor row.
func (c *Client) StoreFingerprint(songID string, fp *fingerprint.Fingerprint) error {
	if c == nil || c.DB == nil {
		return errors.New(errClientNil)
	}

	rows := make([]landmarkRow, 0, len(fp.Landmarks))
	for _, lm := range fp.Landmarks {
		rows = append(rows, landmarkRow{
			Hash:         lm.Hash,
			SongID:       songID,
			AnchorTimeMs: lm.AnchorTimeMs,
		})
	}
	if len(rows) > 0 {
		if err := c.DB.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("batch insert landmarks: %w", err)
		}
	}

	desc := descriptorRow{
		SongID:     songID,
		Vector:     encodeVector(fp.Descriptor.Vector),
		MFCCConf:   fp.Descriptor.MFCCConfidence,
		ChromaConf: fp.Descriptor.ChromaConfidence,
		RhythmConf: fp.Descriptor.RhythmConfidence,
	}
	if err := c.DB.Save(&desc).Error; err != nil {
		return fmt.Errorf("storing descriptor: %w", err)
	}
	return nil
}

// DeleteSongByID removes a song and all its derived data in one
// transaction. The read path only notices at the next index build.
func (c *Client) DeleteSongByID(songID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", songID).Delete(&landmarkRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("song_id = ?", songID).Delete(&descriptorRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", songID).Delete(&songRow{}).Error
	})
}

// GetSongByID fetches one song's metadata.
func (c *Client) GetSongByID(songID string) (*model.Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errClientNil)
	}
	var row songRow
	if err := c.DB.Where("id = ?", songID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("querying song %s: %w", songID, err)
	}
	song := rowToSong(row)
	return &song, nil
}

// ListSongs returns all catalog songs.
func (c *Client) ListSongs() ([]model.Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errClientNil)
	}
	var rows []songRow
	if err := c.DB.Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	songs := make([]model.Song, len(rows))
	for i, r := range rows {
		songs[i] = rowToSong(r)
	}
	return songs, nil
}

// LoadCatalog reads every song's fingerprint back into reference
// entries, ready for an index build.
func (c *Client) LoadCatalog() ([]index.ReferenceEntry, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errClientNil)
	}

	songs, err := c.ListSongs()
	if err != nil {
		return nil, err
	}

	entries := make([]index.ReferenceEntry, 0, len(songs))
	for _, song := range songs {
		var lms []landmarkRow
		if err := c.DB.Where("song_id = ?", song.ID).Find(&lms).Error; err != nil {
			return nil, fmt.Errorf("loading landmarks for %s: %w", song.ID, err)
		}

		fp := &fingerprint.Fingerprint{
			Landmarks:        make([]fingerprint.Landmark, len(lms)),
			SourceDurationMs: song.DurationMs,
		}
		for i, r := range lms {
			fp.Landmarks[i] = fingerprint.Landmark{Hash: r.Hash, AnchorTimeMs: r.AnchorTimeMs}
		}

		var desc descriptorRow
		err := c.DB.Where("song_id = ?", song.ID).First(&desc).Error
		switch {
		case err == nil:
			fp.Descriptor = fingerprint.Descriptor{
				Vector:           decodeVector(desc.Vector),
				MFCCConfidence:   desc.MFCCConf,
				ChromaConfidence: desc.ChromaConf,
				RhythmConfidence: desc.RhythmConf,
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			fp.Descriptor = fingerprint.Descriptor{Vector: make([]float64, fingerprint.DescriptorDim)}
		default:
			return nil, fmt.Errorf("loading descriptor for %s: %w", song.ID, err)
		}

		entries = append(entries, index.ReferenceEntry{Song: song, Fingerprint: fp})
	}
	return entries, nil
}

func rowToSong(r songRow) model.Song {
	return model.Song{
		ID:         r.ID,
		Title:      r.Title,
		Artist:     r.Artist,
		Language:   r.Language,
		Genre:      r.Genre,
		YouTubeID:  r.YouTubeID,
		DurationMs: r.DurationMs,
	}
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}
