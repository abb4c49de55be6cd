package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/aryanmaurya/EchoTrace/pkg/echotrace"
	"github.com/aryanmaurya/EchoTrace/pkg/logger"
)

func handleAdd() {
	log := logger.GetLogger()

	args := cmdArgs[1:]
	var audioPath string
	var flagArgs []string
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && audioPath == "" {
			audioPath = arg
		} else {
			flagArgs = append(flagArgs, args[i:]...)
			break
		}
	}

	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	title := addCmd.String("title", "", "Song title")
	artist := addCmd.String("artist", "", "Artist name")
	language := addCmd.String("language", "", "Song language (optional)")
	genre := addCmd.String("genre", "", "Genre (optional)")
	youtubeURL := addCmd.String("youtube-url", "", "YouTube URL to download instead of a local file")
	addCmd.Parse(flagArgs)

	if *youtubeURL == "" && audioPath == "" {
		fmt.Println("Error: audio file path or --youtube-url required")
		os.Exit(1)
	}
	if *youtubeURL == "" && (*title == "" || *artist == "") {
		fmt.Println("Error: --title and --artist are required for local files")
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	meta := echotrace.SongMeta{
		Title:    *title,
		Artist:   *artist,
		Language: *language,
		Genre:    *genre,
	}

	var songID string
	if *youtubeURL != "" {
		fmt.Println("📥 Downloading audio from YouTube...")
		songID, err = svc.AddSongFromYouTube(ctx, *youtubeURL, meta)
	} else {
		songID, err = svc.AddSong(ctx, audioPath, meta)
	}
	if err != nil {
		fmt.Printf("❌ Failed to add song: %v\n", err)
		log.Errorf("Add failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Added song ID=%s\n", songID)
}

// handleAddDir ingests every supported audio file under a directory,
// deferring the index rebuild to a single publish at the end.
func handleAddDir() {
	log := logger.GetLogger()

	if len(cmdArgs) < 2 {
		fmt.Println("Usage: echotrace add-dir <directory>")
		os.Exit(1)
	}
	dir := cmdArgs[1]

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".wav", ".mp3", ".m4a", ".flac", ".ogg":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("❌ Failed to scan directory: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Println("No audio files found")
		return
	}

	svc, err := createService(echotrace.WithAutoRebuild(false))
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	progress := mpb.New(mpb.WithWidth(48))
	bar := progress.AddBar(int64(len(paths)),
		mpb.PrependDecorators(
			decor.Name("ingesting "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	ctx := context.Background()
	added, failed := 0, 0
	for _, path := range paths {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		_, err := svc.AddSong(ctx, path, echotrace.SongMeta{
			Title:  base,
			Artist: "Unknown Artist",
		})
		if err != nil {
			log.Warnf("Skipping %s: %v", path, err)
			failed++
		} else {
			added++
		}
		bar.Increment()
	}
	progress.Wait()

	if err := svc.RebuildIndex(); err != nil {
		fmt.Printf("❌ Index rebuild failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Added %d songs (%d failed)\n", added, failed)
}

func handleMatch() {
	if len(cmdArgs) < 2 {
		fmt.Println("Usage: echotrace match <audio_file>")
		os.Exit(1)
	}
	audioPath := cmdArgs[1]

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	// the index lives in memory per process, so a CLI match always
	// starts from the catalog
	if err := svc.RebuildIndex(); err != nil {
		fmt.Printf("❌ Index build failed: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	result, err := svc.MatchFile(ctx, audioPath)
	if err != nil {
		fmt.Printf("❌ Match failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	if result == nil {
		fmt.Printf("🔍 No match found (%.1fs) — try a clearer recording\n", elapsed.Seconds())
		return
	}

	fmt.Printf("🎵 %s — %s\n", result.Title, result.Artist)
	fmt.Printf("   confidence %.0f%%, %d aligned landmarks, offset %.1fs (took %.1fs)\n",
		result.Confidence*100, result.LandmarkVotes,
		float64(result.AlignmentOffsetMs)/1000, elapsed.Seconds())
	if result.YouTubeID != "" {
		fmt.Printf("   https://youtu.be/%s\n", result.YouTubeID)
	}
}

func handleList() {
	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	songs, err := svc.ListSongs()
	if err != nil {
		fmt.Printf("❌ Failed to list songs: %v\n", err)
		os.Exit(1)
	}
	if len(songs) == 0 {
		fmt.Println("Catalog is empty")
		return
	}

	fmt.Printf("%-36s  %-30s  %-20s  %s\n", "ID", "TITLE", "ARTIST", "DURATION")
	for _, s := range songs {
		fmt.Printf("%-36s  %-30s  %-20s  %ds\n", s.ID, s.Title, s.Artist, s.DurationMs/1000)
	}
}

func handleDelete() {
	if len(cmdArgs) < 2 {
		fmt.Println("Usage: echotrace delete <song_id>")
		os.Exit(1)
	}
	songID := cmdArgs[1]

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.DeleteSong(songID); err != nil {
		fmt.Printf("❌ Failed to delete song: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Deleted song %s\n", songID)
}
