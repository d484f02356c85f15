// Package config handles library configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents library configuration stored in .papergraph/config.json.
type Config struct {
	Name         string `json:"name,omitempty"`          // Display name for the library
	DefaultGraph string `json:"default_graph,omitempty"` // Graph printed by `pg graph` with no argument
}

const (
	PapergraphDir = ".papergraph"
	ConfigFile    = "config.json"
	PapersFile    = "papers.jsonl"
	NotesFile     = "notes.jsonl"
	CacheDir      = "cache"
	DBFile        = "papers.db"
)

// ValidGraphs lists the accepted default_graph values.
var ValidGraphs = []string{"references", "reduced", "mentions"}

// PapergraphPath returns the path to the .papergraph directory from a root path.
func PapergraphPath(root string) string {
	return filepath.Join(root, PapergraphDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, PapergraphDir, ConfigFile)
}

// PapersPath returns the path to papers.jsonl from a root path.
func PapersPath(root string) string {
	return filepath.Join(root, PapergraphDir, PapersFile)
}

// NotesPath returns the path to notes.jsonl from a root path.
func NotesPath(root string) string {
	return filepath.Join(root, PapergraphDir, NotesFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, PapergraphDir, CacheDir)
}

// DBPath returns the path to papers.db from a root path.
func DBPath(root string) string {
	return filepath.Join(root, PapergraphDir, CacheDir, DBFile)
}

// IsRepository checks if the given path contains a papergraph library.
func IsRepository(root string) bool {
	info, err := os.Stat(PapergraphPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a papergraph library.
// Returns the library root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a papergraph library (no .papergraph directory found)")
		}
		abs = parent
	}
}

// Load reads configuration from the library at the given root.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Save writes configuration to the library at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ValidateDefaultGraph checks that the graph name is valid.
func ValidateDefaultGraph(name string) error {
	if name == "" {
		return nil // Empty defaults to "reduced"
	}

	for _, valid := range ValidGraphs {
		if name == valid {
			return nil
		}
	}

	return fmt.Errorf("invalid default_graph: %s (valid: %v)", name, ValidGraphs)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
