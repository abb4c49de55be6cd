package echotrace

// Song is a catalog entry's public metadata.
type Song struct {
	ID         string // UUID
	Title      string
	Artist     string
	Language   string
	Genre      string
	YouTubeID  string
	DurationMs int
}

// MatchResult is a recognized song with scoring detail. A nil
// *MatchResult from Service.MatchFile means "no match" — a valid
// negative, not an error.
type MatchResult struct {
	SongID               string
	Title                string
	Artist               string
	YouTubeID            string
	LandmarkVotes        int     // aligned landmark count behind the decision
	AlignmentOffsetMs    int64   // where in the reference the query starts
	DescriptorSimilarity float64 // cosine similarity of descriptors
	Confidence           float64 // fused confidence in [0, 1]
	QueryConfidence      float64 // quality of the query fingerprint itself
}
