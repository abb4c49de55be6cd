package echotrace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"

	"github.com/aryanmaurya/EchoTrace/pkg/utils"
)

// downloadYouTubeAudio fetches the audio track of a YouTube video into
// tempDir as mp3 and returns its path plus the video ID. Requires the
// yt-dlp binary; Install downloads it on first use.
func downloadYouTubeAudio(ctx context.Context, youtubeURL, tempDir string) (string, string, error) {
	if !utils.IsYouTubeURL(youtubeURL) {
		return "", "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}
	videoID, err := utils.ExtractYouTubeID(youtubeURL)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", "", err
	}

	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return "", "", fmt.Errorf("installing yt-dlp: %w", err)
	}

	outputPath := filepath.Join(tempDir, videoID+".mp3")

	dl := ytdlp.New().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("mp3").
		Output(filepath.Join(tempDir, videoID+".%(ext)s"))

	if _, err := dl.Run(ctx, youtubeURL); err != nil {
		return "", "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", "", fmt.Errorf("expected download at %s: %w", outputPath, err)
	}
	return outputPath, videoID, nil
}
