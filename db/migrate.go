package db

import (
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
)

//go:embed sqlite/migrations/*.sql
var migrationFiles embed.FS

// Migrate applies any migrations not yet recorded in schema_migrations.
// Each migration runs in its own transaction.
func (d *DB) Migrate() error {
	_, err := d.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`)
	if err != nil {
		return errors.Wrap(err, "creating schema_migrations table")
	}

	applied := map[string]bool{}
	rows, err := d.conn.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return errors.Wrap(err, "reading applied migrations")
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return errors.Wrap(err, "scanning migration version")
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterating applied migrations")
	}

	entries, err := fs.ReadDir(migrationFiles, "sqlite/migrations")
	if err != nil {
		return errors.Wrap(err, "listing embedded migrations")
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		if applied[version] {
			continue
		}

		content, err := migrationFiles.ReadFile("sqlite/migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", name)
		}

		tx, err := d.conn.Begin()
		if err != nil {
			return errors.Wrapf(err, "beginning transaction for %s", name)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "applying migration %s", name)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, strftime('%s','now'))",
			version,
		); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "recording migration %s", name)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing migration %s", name)
		}

		logger.Debugw("applied migration", "version", version)
	}

	return nil
}
