package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aryanmaurya/EchoTrace/pkg/utils"
)

// ConvertConfig controls ffmpeg conversion of arbitrary inputs.
type ConvertConfig struct {
	SampleRate int // target rate, defaults to ProcessingRate
}

// ConvertToMonoWAV converts any ffmpeg-decodable audio file to mono
// 16-bit PCM WAV in outputDir and returns the output path. Used on the
// ingestion path where inputs arrive as mp3/m4a/webm; query clips are
// expected to already be PCM.
func ConvertToMonoWAV(ctx context.Context, inputPath, outputDir string, cfg ConvertConfig) (string, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = ProcessingRate
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(inputPath)
	if ext := filepath.Ext(base); ext != "" && !strings.EqualFold(ext, ".wav") {
		base = strings.TrimSuffix(base, ext) + ".wav"
	}
	outputPath := filepath.Join(outputDir, base)

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1", // mono
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: ffmpeg failed: %v (%s)", ErrMalformedAudio, err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}
