package swarm

import (
	"os"
	"path/filepath"
)

// Home returns the Swarm home directory.
// It defaults to ~/.swarm but can be overridden with the SWARM_HOME environment variable.
func Home() string {
	if v := os.Getenv("SWARM_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".swarm")
}

// DefaultDBPath returns the default SQLite database path (~/.swarm/swarm.db).
func DefaultDBPath() string {
	return filepath.Join(Home(), "swarm.db")
}

// DefaultConfigPath returns the default configuration file (~/.swarm/swarm.yaml).
func DefaultConfigPath() string {
	return filepath.Join(Home(), "swarm.yaml")
}

// KnowledgePath returns the directory holding saved knowledge snapshots.
func KnowledgePath() string {
	return filepath.Join(Home(), "knowledge")
}

// EnsureHome creates the Swarm home and knowledge directories if they don't exist.
func EnsureHome() error {
	return os.MkdirAll(KnowledgePath(), 0o755)
}
