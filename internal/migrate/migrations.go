package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Migrate brings the database up to the newest embedded schema version. The
// current version lives in a single-row schema_version table; every
// sql/NNNN_*.sql file past it is applied, all inside one transaction so a
// failed step leaves the previous version intact.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := schemaVersion(tx)
	if err != nil {
		return err
	}
	entries, err := schemaFS.ReadDir("sql")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("migration name %s: %w", entry.Name(), err)
		}
		if version <= current {
			continue
		}
		stmts, err := schemaFS.ReadFile("sql/" + entry.Name())
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(stmts)); err != nil {
			return fmt.Errorf("apply %s: %w", entry.Name(), err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, version); err != nil {
			return fmt.Errorf("record version %d: %w", version, err)
		}
		current = version
	}
	return tx.Commit()
}

func schemaVersion(tx *sql.Tx) (int, error) {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return 0, err
	}
	var v int
	err := tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if err == sql.ErrNoRows {
		_, err = tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`)
		return 0, err
	}
	return v, err
}
