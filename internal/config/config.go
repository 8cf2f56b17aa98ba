// Package config resolves pipeline configuration from a TOML file and the
// environment. Flags override file values; credentials come only from the
// environment, each read through an ordered list of alias names.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "fospipe.toml"

// File holds the optional file-backed defaults. Every field has a flag
// counterpart; flags win when set.
type File struct {
	// DataDir is the dataset root (default: data/fos-decisions).
	DataDir string `toml:"data_dir"`

	// SearchURL is the decisions search page driven by the discover stage.
	SearchURL string `toml:"search_url"`

	// EnrichProvider and EmbeddingProvider select between "openai" and
	// "openrouter".
	EnrichProvider    string `toml:"enrich_provider"`
	EnrichModel       string `toml:"enrich_model"`
	EmbeddingProvider string `toml:"embedding_provider"`
	EmbeddingModel    string `toml:"embedding_model"`

	// Politeness delays, in milliseconds.
	DownloadDelayMs int `toml:"download_delay_ms"`
	EnrichDelayMs   int `toml:"enrich_delay_ms"`
	VectorDelayMs   int `toml:"vector_delay_ms"`
	PageWaitMs      int `toml:"page_wait_ms"`
}

// Load reads the config file at path, or DefaultFileName in the working
// directory when path is empty. A missing file is not an error; it yields
// zero-valued defaults.
func Load(path string) (*File, error) {
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// Credential alias lists. The first non-empty environment variable wins.
var (
	openAIKeyAliases     = []string{"OPENAI_API_KEY", "OPENAI_KEY"}
	openRouterKeyAliases = []string{"OPENROUTER_API_KEY", "OPEN_ROUTER_API_KEY"}
	databaseURLAliases   = []string{"DATABASE_URL", "POSTGRES_URL", "POSTGRES_PRISMA_URL"}
	appURLAliases        = []string{"APP_URL", "NEXT_PUBLIC_APP_URL"}
)

// envLookup is swappable for tests.
var envLookup = os.Getenv

// firstEnv returns the first non-empty value among the alias names.
func firstEnv(aliases []string) string {
	for _, name := range aliases {
		if v := envLookup(name); v != "" {
			return v
		}
	}
	return ""
}

// OpenAIKey returns the OpenAI API key, "" when unset.
func OpenAIKey() string { return firstEnv(openAIKeyAliases) }

// OpenRouterKey returns the OpenRouter API key, "" when unset.
func OpenRouterKey() string { return firstEnv(openRouterKeyAliases) }

// DatabaseURL returns the ingest connection string, "" when unset.
func DatabaseURL() string { return firstEnv(databaseURLAliases) }

// AppURL returns the application URL used as an outbound attribution
// header, "" when unset.
func AppURL() string { return firstEnv(appURLAliases) }
