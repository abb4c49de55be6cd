package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/aryanmaurya/EchoTrace/pkg/echotrace"
	"github.com/aryanmaurya/EchoTrace/pkg/logger"
)

// Global flags shared by every subcommand.
var (
	dbPath  string
	tempDir string
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("ECHOTRACE_DB_PATH", "echotrace.sqlite3"), "Path to the SQLite catalog file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("ECHOTRACE_TEMP_DIR", "/tmp"), "Directory for temporary audio conversion files")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService(opts ...echotrace.Option) (echotrace.Service, error) {
	base := []echotrace.Option{
		echotrace.WithDBPath(dbPath),
		echotrace.WithTempDir(tempDir),
	}
	return echotrace.NewService(append(base, opts...)...)
}

// cmdArgs holds the arguments after the global flags: the subcommand
// name followed by its own arguments.
var cmdArgs []string

func main() {
	// .env is optional; flags and real env still win
	godotenv.Load()
	flag.Parse()
	cmdArgs = flag.Args()

	log := logger.GetLogger()

	printBanner()

	if len(cmdArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := cmdArgs[0]
	log.Infof("Executing command: %s", command)

	switch command {
	case "add":
		handleAdd()
	case "add-dir":
		handleAddDir()
	case "match":
		handleMatch()
	case "list":
		handleList()
	case "delete":
		handleDelete()
	case "spectrogram":
		handleSpectrogram()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _____     _         _____
| ____|___| |__   __|_   _| __ __ _  ___ ___
|  _| / __| '_ \ / _ \| || '__/ _' |/ __/ _ \
| |__| (__| | | | (_) | || | | (_| | (_|  __/
|_____\___|_| |_|\___/|_||_|  \__,_|\___\___|

        Audio Fingerprinting CLI Tool
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println(`Usage: echotrace <command> [options]

Commands:
  add <audio_file> --title <t> --artist <a>   Add a song to the catalog
  add --youtube-url <url>                     Download from YouTube and add
  add-dir <directory>                         Add every audio file in a directory
  match <audio_file>                          Recognize a recorded clip
  list                                        List catalog songs
  delete <song_id>                            Remove a song from the catalog
  spectrogram <wav_file> <out.png>            Render a clip's spectrogram

Global options:
  -db <path>     SQLite catalog file (default: echotrace.sqlite3)
  -temp <dir>    Temp directory for conversions (default: /tmp)`)
}
