package echotrace

import "github.com/aryanmaurya/EchoTrace/internal/match"

type Config struct {
	DBPath      string
	TempDir     string
	AutoRebuild bool // rebuild and publish the index after every AddSong
	Matcher     match.Config
	Logger      Logger
	Catalog     Catalog
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

func WithTempDir(dir string) Option {
	return func(c *Config) { c.TempDir = dir }
}

// WithAutoRebuild toggles per-song index rebuilds. Bulk ingestion
// should disable it and call RebuildIndex once at the end.
func WithAutoRebuild(enabled bool) Option {
	return func(c *Config) { c.AutoRebuild = enabled }
}

func WithMatcherConfig(cfg match.Config) Option {
	return func(c *Config) { c.Matcher = cfg }
}

func WithLogger(log Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func WithCatalog(catalog Catalog) Option {
	return func(c *Config) { c.Catalog = catalog }
}

func defaultConfig() *Config {
	return &Config{
		DBPath:      "echotrace.sqlite3",
		TempDir:     "/tmp",
		AutoRebuild: true,
		Matcher:     match.DefaultConfig(),
	}
}
