package model

// Posting is the stored value for a landmark hash bucket entry.
// AnchorTimeMs is the time (in ms) of the anchor peak in the reference audio.
type Posting struct {
	SongID       string
	AnchorTimeMs uint32
}

// Song holds catalog metadata for one reference recording.
type Song struct {
	ID         string // UUID
	Title      string
	Artist     string
	Language   string
	Genre      string
	YouTubeID  string // YouTube video ID (if ingested from YouTube)
	DurationMs int
}
