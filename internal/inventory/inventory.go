// Package inventory provides the SQLite-backed local receipt database and
// the installation-state evaluator built on top of it.
//
// The receipt database is written by the privileged installer; this engine
// only reads it. For one planning run it is treated as a fixed snapshot.
package inventory

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS receipts (
	pkg_id    TEXT PRIMARY KEY,
	version   TEXT NOT NULL DEFAULT '',
	item_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_receipts_item_name ON receipts(item_name);

CREATE TABLE IF NOT EXISTS installed_files (
	path    TEXT PRIMARY KEY,
	version TEXT NOT NULL DEFAULT '',
	sha256  TEXT NOT NULL DEFAULT ''
);
`

// DB wraps a sql.DB with inventory-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the receipt database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("inventory: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inventory: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inventory: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InstalledVersion returns the recorded version for a package id.
func (db *DB) InstalledVersion(pkgID string) (string, bool, error) {
	var vers string
	err := db.conn.QueryRow(
		`SELECT version FROM receipts WHERE pkg_id = ?`, pkgID).Scan(&vers)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("inventory: installed version: %w", err)
	}
	return vers, true, nil
}

// IsAnyVersionInstalled reports whether any receipt is recorded for the
// given item name.
func (db *DB) IsAnyVersionInstalled(name string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM receipts WHERE item_name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inventory: any version installed: %w", err)
	}
	return count > 0, nil
}

// InstalledPackageIDs returns all recorded package ids mapped to versions.
func (db *DB) InstalledPackageIDs() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT pkg_id, version FROM receipts`)
	if err != nil {
		return nil, fmt.Errorf("inventory: installed packages: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, vers string
		if err := rows.Scan(&id, &vers); err != nil {
			return nil, err
		}
		out[id] = vers
	}
	return out, rows.Err()
}

// FileVersion returns the recorded version for an installed file path.
func (db *DB) FileVersion(path string) (string, bool, error) {
	var vers string
	err := db.conn.QueryRow(
		`SELECT version FROM installed_files WHERE path = ?`, path).Scan(&vers)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("inventory: file version: %w", err)
	}
	return vers, true, nil
}

// AddReceipt records a receipt. Used by the installer and by tests to
// seed inventory snapshots.
func (db *DB) AddReceipt(pkgID, vers, itemName string) error {
	_, err := db.conn.Exec(`
		INSERT INTO receipts (pkg_id, version, item_name)
		VALUES (?, ?, ?)
		ON CONFLICT(pkg_id) DO UPDATE SET
			version   = excluded.version,
			item_name = excluded.item_name
	`, pkgID, vers, itemName)
	if err != nil {
		return fmt.Errorf("inventory: add receipt: %w", err)
	}
	return nil
}

// AddFile records an installed file.
func (db *DB) AddFile(path, vers, sha256 string) error {
	_, err := db.conn.Exec(`
		INSERT INTO installed_files (path, version, sha256)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			version = excluded.version,
			sha256  = excluded.sha256
	`, path, vers, sha256)
	if err != nil {
		return fmt.Errorf("inventory: add file: %w", err)
	}
	return nil
}
