package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Every workspace keeps its store in a single sqlite file under a .loomify
// directory, so recordings, summaries, and the audit log travel with the
// workspace.
type Config struct {
	Workspace string
}

// Path is the sqlite file location for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".loomify", "loomify.db")
}

// EnsureWorkspace creates the .loomify directory if missing and returns it.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Dir(Path(workspace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open ensures the workspace exists and opens its database with foreign keys
// enabled.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", Path(cfg.Workspace))
	return sql.Open("sqlite", dsn)
}
